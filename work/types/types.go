package types

import (
	"bytes"
	"encoding/json"
)

// FlexString decodes a JSON value that upstreams serve inconsistently as
// either a string or a number (vod_id and vod_year in particular).
type FlexString string

// UnmarshalJSON accepts string, number, null, or bool tokens and stores the
// textual form.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// MarshalJSON always emits the string form.
func (f FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

// String returns the plain string value.
func (f FlexString) String() string {
	return string(f)
}

// Record is the intermediate shape every upstream response is decoded into
// before normalization: the classic vod_* field set, plus the flattened
// episode arrays that spider backends return natively.
type Record struct {
	VodID        FlexString `json:"vod_id"`
	VodName      string     `json:"vod_name"`
	VodPic       string     `json:"vod_pic"`
	TypeName     string     `json:"type_name"`
	VodYear      FlexString `json:"vod_year"`
	VodArea      string     `json:"vod_area"`
	VodDirector  string     `json:"vod_director"`
	VodActor     string     `json:"vod_actor"`
	VodRemarks   string     `json:"vod_remarks"`
	VodContent   string     `json:"vod_content"`
	VodPlayFrom  string     `json:"vod_play_from"`
	VodPlayURL   string     `json:"vod_play_url"`
	Episodes     []string   `json:"episodes,omitempty"`
	EpisodeNames []string   `json:"episodes_names,omitempty"`
}

// ListPayload is the common envelope of classic JSON responses and the
// normalized form of XML feeds.
type ListPayload struct {
	Code      int        `json:"code"`
	List      []Record   `json:"list"`
	Page      FlexString `json:"page,omitempty"`
	PageCount FlexString `json:"pagecount,omitempty"`
	Classes   []Category `json:"class,omitempty"`
}

// Category is one entry of a source's category tree.
type Category struct {
	TypeID   FlexString `json:"type_id"`
	TypePID  FlexString `json:"type_pid"`
	TypeName string     `json:"type_name"`
}

// CatalogItem is one search or browse result row, tagged with the source it
// came from. Items are never mutated after creation; identity for dedup
// purposes is the (SourceCode, VodID) pair.
type CatalogItem struct {
	VodID      string `json:"vod_id"`
	VodName    string `json:"vod_name"`
	VodPic     string `json:"vod_pic"`
	TypeName   string `json:"type_name"`
	VodYear    string `json:"vod_year"`
	VodRemarks string `json:"vod_remarks"`
	SourceCode string `json:"source_code"`
	SourceName string `json:"source_name"`
	APIURL     string `json:"api_url"`
}

// DedupKey returns the aggregation dedup key for this item.
func (it CatalogItem) DedupKey() string {
	return it.SourceCode + "_" + it.VodID
}

// VideoInfo is the normalized detail record. EpisodeNames and Episodes are
// parallel ordered slices: EpisodeNames[i] names Episodes[i], and both always
// have equal length (possibly zero).
type VideoInfo struct {
	Title        string   `json:"title"`
	Cover        string   `json:"cover"`
	Desc         string   `json:"desc"`
	Type         string   `json:"type"`
	Year         string   `json:"year"`
	Area         string   `json:"area"`
	Director     string   `json:"director"`
	Actor        string   `json:"actor"`
	Remarks      string   `json:"remarks"`
	SourceName   string   `json:"source_name"`
	SourceCode   string   `json:"source_code"`
	EpisodeNames []string `json:"episodes_names"`
	Episodes     []string `json:"episodes"`
}

// SearchResponse is the service-boundary shape of a single-source search.
// Code 200 carries results; any failure is Code 400 with a message and an
// empty list, never an error.
type SearchResponse struct {
	Code int           `json:"code"`
	List []CatalogItem `json:"list"`
	Msg  string        `json:"msg,omitempty"`
}

// DetailResponse is the service-boundary shape of a detail lookup.
type DetailResponse struct {
	Code      int        `json:"code"`
	Episodes  []string   `json:"episodes"`
	DetailURL string     `json:"detailUrl,omitempty"`
	VideoInfo *VideoInfo `json:"videoInfo,omitempty"`
	Msg       string     `json:"msg,omitempty"`
}

// CategoryResponse is the service-boundary shape of category listing and
// category browse calls.
type CategoryResponse struct {
	Code       int           `json:"code"`
	Categories []Category    `json:"class,omitempty"`
	List       []CatalogItem `json:"list,omitempty"`
	Page       int           `json:"page,omitempty"`
	PageCount  int           `json:"pagecount,omitempty"`
	Msg        string        `json:"msg,omitempty"`
}

// PlayResolution is the outcome of resolving an episode reference into
// something playable. Parse 1 means the URL must be fetched indirectly
// through the proxy rather than handed to the player directly.
type PlayResolution struct {
	URL    string            `json:"url"`
	Parse  int               `json:"parse"`
	Header map[string]string `json:"header,omitempty"`
}
