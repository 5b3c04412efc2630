package types

// XMLCategories is the fixed category taxonomy used for XML-feed sources,
// which expose no discoverable category-list endpoint. IDs follow the de
// facto MacCMS numbering that these feeds share.
var XMLCategories = []Category{
	{TypeID: "1", TypePID: "0", TypeName: "电影片"},
	{TypeID: "2", TypePID: "0", TypeName: "连续剧"},
	{TypeID: "3", TypePID: "0", TypeName: "综艺片"},
	{TypeID: "4", TypePID: "0", TypeName: "动漫片"},
	{TypeID: "6", TypePID: "1", TypeName: "动作片"},
	{TypeID: "7", TypePID: "1", TypeName: "喜剧片"},
	{TypeID: "8", TypePID: "1", TypeName: "爱情片"},
	{TypeID: "9", TypePID: "1", TypeName: "科幻片"},
	{TypeID: "10", TypePID: "1", TypeName: "恐怖片"},
	{TypeID: "11", TypePID: "1", TypeName: "剧情片"},
	{TypeID: "12", TypePID: "1", TypeName: "战争片"},
	{TypeID: "13", TypePID: "2", TypeName: "国产剧"},
	{TypeID: "14", TypePID: "2", TypeName: "香港剧"},
	{TypeID: "15", TypePID: "2", TypeName: "韩国剧"},
	{TypeID: "16", TypePID: "2", TypeName: "欧美剧"},
	{TypeID: "21", TypePID: "2", TypeName: "台湾剧"},
	{TypeID: "22", TypePID: "2", TypeName: "日本剧"},
	{TypeID: "23", TypePID: "2", TypeName: "海外剧"},
	{TypeID: "24", TypePID: "2", TypeName: "泰国剧"},
	{TypeID: "25", TypePID: "3", TypeName: "大陆综艺"},
	{TypeID: "26", TypePID: "3", TypeName: "港台综艺"},
	{TypeID: "27", TypePID: "3", TypeName: "日韩综艺"},
	{TypeID: "28", TypePID: "3", TypeName: "欧美综艺"},
	{TypeID: "29", TypePID: "4", TypeName: "国产动漫"},
	{TypeID: "30", TypePID: "4", TypeName: "日韩动漫"},
	{TypeID: "31", TypePID: "4", TypeName: "欧美动漫"},
	{TypeID: "32", TypePID: "4", TypeName: "港台动漫"},
	{TypeID: "33", TypePID: "4", TypeName: "海外动漫"},
	{TypeID: "20", TypePID: "1", TypeName: "记录片"},
	{TypeID: "34", TypePID: "1", TypeName: "伦理片"},
	{TypeID: "36", TypePID: "2", TypeName: "短剧"},
	{TypeID: "37", TypePID: "1", TypeName: "动画片"},
}
