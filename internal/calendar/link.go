package calendar

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const editURL = "https://calendar.google.com/calendar/u/0/r/eventedit/"

var eidPattern = regexp.MustCompile(`eid=([^&]+)`)

// FixLink rewrites an event's htmlLink into the edit URL form that
// opens reliably. The eid query parameter is reused when present;
// otherwise the eid is rebuilt from the event and calendar ids. The
// link is returned unchanged when neither is available.
func FixLink(htmlLink, eventID, calendarID string) string {
	if m := eidPattern.FindStringSubmatch(htmlLink); m != nil {
		return editURL + m[1]
	}
	if eventID == "" {
		return htmlLink
	}
	eid := base64.StdEncoding.EncodeToString([]byte(eventID + " " + calendarID))
	return editURL + strings.TrimRight(eid, "=")
}

// eventPaths are the places a created or updated event has been seen
// in tool payloads.
var eventPaths = []string{
	"data.response_data",
	"response_data",
	"data",
}

// rewriteLink fixes the htmlLink of the event inside payload and records
// it again as fixedLink. It returns the new payload and the link, or the
// payload unchanged when it holds no event with both id and link.
func rewriteLink(payload []byte, calendarID string) ([]byte, string) {
	for _, base := range eventPaths {
		ev := gjson.GetBytes(payload, base)
		link, id := ev.Get("htmlLink").String(), ev.Get("id").String()
		if link == "" || id == "" {
			continue
		}
		fixed := FixLink(link, id, calendarID)
		out, err := sjson.SetBytes(payload, base+".htmlLink", fixed)
		if err != nil {
			return payload, fixed
		}
		if out, err = sjson.SetBytes(out, base+".fixedLink", fixed); err != nil {
			return payload, fixed
		}
		return out, fixed
	}
	return payload, ""
}
