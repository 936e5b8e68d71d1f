package hls

import (
	"strings"
	"time"

	"github.com/agleyzer/hlsplaylist/internal/attribute"
)

// ClientAttribute is an X-<name> attribute of EXT-X-DATERANGE. Value is the
// raw attribute value, including quotes when it is a quoted-string.
type ClientAttribute struct {
	Name  string
	Value string
}

// ExtXDateRange is EXT-X-DATERANGE.
type ExtXDateRange struct {
	ID               string
	Class            string
	StartDate        time.Time
	EndDate          *time.Time
	Duration         *time.Duration
	PlannedDuration  *time.Duration
	ClientAttributes []ClientAttribute
	SCTE35Cmd        string
	SCTE35Out        string
	SCTE35In         string
	EndOnNext        bool
}

func (ExtXDateRange) tag() {}

// Validate implements Tag.
func (t ExtXDateRange) Validate() error {
	if t.ID == "" {
		return missingAttribute("ID")
	}
	if t.StartDate.IsZero() {
		return missingAttribute("START-DATE")
	}
	if t.EndOnNext {
		if t.Class == "" {
			return missingAttribute("CLASS")
		}
		if t.Duration != nil {
			return unexpectedAttribute("DURATION")
		}
		if t.EndDate != nil {
			return unexpectedAttribute("END-DATE")
		}
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		return invalidInput("%s END-DATE %s is before START-DATE %s", nameDateRange,
			formatDateTime(*t.EndDate), formatDateTime(t.StartDate))
	}
	if t.Duration != nil && *t.Duration < 0 {
		return invalidInput("%s DURATION must not be negative", nameDateRange)
	}
	if t.PlannedDuration != nil && *t.PlannedDuration < 0 {
		return invalidInput("%s PLANNED-DURATION must not be negative", nameDateRange)
	}
	for _, a := range t.ClientAttributes {
		if !strings.HasPrefix(a.Name, "X-") {
			return invalidInput("%s client attribute %q must start with X-", nameDateRange, a.Name)
		}
	}
	return nil
}

func (ExtXDateRange) RequiredVersion() ProtocolVersion { return V1 }

func (t ExtXDateRange) String() string {
	var b strings.Builder
	b.WriteString("#" + nameDateRange + ":ID=" + attribute.Quote(t.ID))
	if t.Class != "" {
		b.WriteString(",CLASS=" + attribute.Quote(t.Class))
	}
	b.WriteString(",START-DATE=" + attribute.Quote(formatDateTime(t.StartDate)))
	if t.EndDate != nil {
		b.WriteString(",END-DATE=" + attribute.Quote(formatDateTime(*t.EndDate)))
	}
	if t.Duration != nil {
		b.WriteString(",DURATION=" + formatSeconds(*t.Duration))
	}
	if t.PlannedDuration != nil {
		b.WriteString(",PLANNED-DURATION=" + formatSeconds(*t.PlannedDuration))
	}
	for _, a := range t.ClientAttributes {
		b.WriteString("," + a.Name + "=" + a.Value)
	}
	if t.SCTE35Cmd != "" {
		b.WriteString(",SCTE35-CMD=" + t.SCTE35Cmd)
	}
	if t.SCTE35Out != "" {
		b.WriteString(",SCTE35-OUT=" + t.SCTE35Out)
	}
	if t.SCTE35In != "" {
		b.WriteString(",SCTE35-IN=" + t.SCTE35In)
	}
	if t.EndOnNext {
		b.WriteString(",END-ON-NEXT=YES")
	}
	return b.String()
}

func parseDateRange(params string, hasParams bool) (ExtXDateRange, error) {
	pairs, err := attributes(nameDateRange, params, hasParams)
	if err != nil {
		return ExtXDateRange{}, err
	}
	var t ExtXDateRange
	for _, p := range pairs {
		switch p.Name {
		case "ID":
			if t.ID, err = quoted(p); err != nil {
				return ExtXDateRange{}, err
			}
		case "CLASS":
			if t.Class, err = quoted(p); err != nil {
				return ExtXDateRange{}, err
			}
		case "START-DATE", "END-DATE":
			v, err := quoted(p)
			if err != nil {
				return ExtXDateRange{}, err
			}
			ts, err := parseDateTime(v)
			if err != nil {
				return ExtXDateRange{}, invalidValue(p.Name, err)
			}
			if p.Name == "START-DATE" {
				t.StartDate = ts
			} else {
				t.EndDate = &ts
			}
		case "DURATION", "PLANNED-DURATION":
			d, err := parseSeconds(p.Value)
			if err != nil {
				return ExtXDateRange{}, invalidValue(p.Name, err)
			}
			if p.Name == "DURATION" {
				t.Duration = &d
			} else {
				t.PlannedDuration = &d
			}
		case "SCTE35-CMD":
			t.SCTE35Cmd = p.Value
		case "SCTE35-OUT":
			t.SCTE35Out = p.Value
		case "SCTE35-IN":
			t.SCTE35In = p.Value
		case "END-ON-NEXT":
			if p.Value != "YES" {
				return ExtXDateRange{}, invalidInput("END-ON-NEXT must be YES, got %q", p.Value)
			}
			t.EndOnNext = true
		default:
			if strings.HasPrefix(p.Name, "X-") {
				t.ClientAttributes = setClientAttribute(t.ClientAttributes, p.Name, p.Value)
			}
		}
	}
	return t, nil
}

// setClientAttribute keeps the first position of a repeated name and the
// last value.
func setClientAttribute(attrs []ClientAttribute, name, value string) []ClientAttribute {
	for i := range attrs {
		if attrs[i].Name == name {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, ClientAttribute{Name: name, Value: value})
}
