// Package decoder turns raw upstream response bodies into the common
// intermediate record shape. Bodies are sniffed rather than trusted:
// anything that starts with an XML or RSS prolog is parsed as an XML feed,
// everything else as classic JSON.
package decoder

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"vodmux/work/types"
)

// playFromSeparator joins alternate play lines, matching the legacy
// delimiter format the classic JSON dialect uses.
const playFromSeparator = "$$$"

// IsXML reports whether a body should be parsed as an XML feed.
func IsXML(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<rss"))
}

// Decode parses a raw response body into a list payload. Malformed input
// surfaces as an error the caller treats as a per-source failure.
func Decode(raw []byte) (*types.ListPayload, error) {
	if IsXML(raw) {
		return decodeXML(raw)
	}
	return decodeJSON(raw)
}

func decodeJSON(raw []byte) (*types.ListPayload, error) {
	var payload types.ListPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed JSON response: %w", err)
	}
	return &payload, nil
}

// xmlDD is one <dd flag="...">urls</dd> element. Episodes within one dd are
// #-separated, name/url pairs $-separated; the text is carried verbatim.
type xmlDD struct {
	Flag string `xml:"flag,attr"`
	Text string `xml:",chardata"`
}

type xmlDL struct {
	DD []xmlDD `xml:"dd"`
}

// xmlVideo mirrors one <video> element. Tag names map onto the classic
// vod_* fields.
type xmlVideo struct {
	ID       string  `xml:"id"`
	Name     string  `xml:"name"`
	Pic      string  `xml:"pic"`
	Type     string  `xml:"type"`
	Year     string  `xml:"year"`
	Area     string  `xml:"area"`
	Director string  `xml:"director"`
	Actor    string  `xml:"actor"`
	Note     string  `xml:"note"`
	Des      string  `xml:"des"`
	DL       []xmlDL `xml:"dl"`
}

// decodeXML scans the document for <video> elements wherever they sit (some
// feeds root at <rss><list>, others at <list> directly) and converts each to
// a Record in the legacy delimiter format.
func decodeXML(raw []byte) (*types.ListPayload, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	payload := &types.ListPayload{Code: 200}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML response: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "video" {
			continue
		}

		var v xmlVideo
		if err := dec.DecodeElement(&v, &start); err != nil {
			return nil, fmt.Errorf("malformed XML video element: %w", err)
		}
		payload.List = append(payload.List, recordFromXML(&v))
	}

	return payload, nil
}

func recordFromXML(v *xmlVideo) types.Record {
	rec := types.Record{
		VodID:       types.FlexString(strings.TrimSpace(v.ID)),
		VodName:     strings.TrimSpace(v.Name),
		VodPic:      strings.TrimSpace(v.Pic),
		TypeName:    strings.TrimSpace(v.Type),
		VodYear:     types.FlexString(strings.TrimSpace(v.Year)),
		VodArea:     strings.TrimSpace(v.Area),
		VodDirector: strings.TrimSpace(v.Director),
		VodActor:    strings.TrimSpace(v.Actor),
		VodRemarks:  strings.TrimSpace(v.Note),
		VodContent:  strings.TrimSpace(v.Des),
	}

	var playFroms, playURLs []string
	for _, dl := range v.DL {
		for _, dd := range dl.DD {
			urls := strings.TrimSpace(dd.Text)
			if urls == "" {
				continue
			}
			flag := dd.Flag
			if flag == "" {
				flag = "default"
			}
			playFroms = append(playFroms, flag)
			playURLs = append(playURLs, urls)
		}
	}

	rec.VodPlayFrom = strings.Join(playFroms, playFromSeparator)
	rec.VodPlayURL = strings.Join(playURLs, playFromSeparator)
	return rec
}
