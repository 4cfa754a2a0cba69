package report

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// BuildJSON serializes a snapshot, path or error payload to JSON.
func BuildJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// ErrorPayload is the body of a failed request in the requested format.
func ErrorPayload(format, msg string) []byte {
	if format == "xml" {
		var b strings.Builder
		b.WriteString("<Error><Description>")
		b.WriteString(xmlEscape(msg))
		b.WriteString("</Description></Error>")
		return []byte(b.String())
	}
	type errorBody struct {
		Error struct {
			Description string `json:"description"`
		} `json:"error"`
	}
	var e errorBody
	e.Error.Description = msg
	return BuildJSON(e)
}

// BuildXML serializes a snapshot to XML.
func BuildXML(s *Snapshot) []byte {
	var b strings.Builder
	b.WriteString("<Snapshot world=\"")
	b.WriteString(xmlEscape(s.World))
	b.WriteString("\" tick=\"")
	b.WriteString(strconv.FormatUint(s.Tick, 10))
	b.WriteString("\">")
	writeElem(&b, "Name", s.Name)
	b.WriteString("<Cities>")
	for _, c := range s.Cities {
		writeCityXML(&b, c)
	}
	b.WriteString("</Cities>")
	b.WriteString("<Stations>")
	for _, st := range s.Stations {
		writeStationXML(&b, st)
	}
	b.WriteString("</Stations>")
	b.WriteString("<Lines>")
	for _, l := range s.Lines {
		writeLineXML(&b, l)
	}
	b.WriteString("</Lines>")
	b.WriteString("</Snapshot>")
	return []byte(b.String())
}

// BuildPathXML serializes a path answer to XML.
func BuildPathXML(p PathReport) []byte {
	var b strings.Builder
	b.WriteString("<Path>")
	writeElem(&b, "From", p.From)
	writeElem(&b, "To", p.To)
	writeElem(&b, "Category", p.Category)
	writeElem(&b, "Reachable", strconv.FormatBool(p.Reachable))
	if p.Reachable {
		writeElem(&b, "JourneyTime", strconv.FormatUint(uint64(p.JourneyTime), 10))
		writeElem(&b, "Next", p.Next)
		b.WriteString("<Stations>")
		for _, s := range p.Stations {
			writeElem(&b, "Station", s)
		}
		b.WriteString("</Stations>")
	}
	b.WriteString("</Path>")
	return []byte(b.String())
}

func writeCityXML(b *strings.Builder, c CityReport) {
	b.WriteString("<City id=\"")
	b.WriteString(strconv.FormatUint(c.ID, 10))
	b.WriteString("\">")
	writeElem(b, "Name", c.Name)
	writeInt(b, "X", int64(c.X))
	writeInt(b, "Y", int64(c.Y))
	writeInt(b, "Population", c.Population)
	writeInt(b, "Jobs", c.Jobs)
	writeInt(b, "Buildings", int64(c.Buildings))
	writeInt(b, "Growth", c.Growth)
	writeInt(b, "Congestion", c.Congestion)
	writeInt(b, "PassengersGenerated", c.PasGenerated)
	writeInt(b, "PassengersTransported", c.PasTransported)
	writeInt(b, "PassengersWalked", c.PasWalked)
	writeInt(b, "MailGenerated", c.MailGenerated)
	writeInt(b, "MailTransported", c.MailTransported)
	writeInt(b, "GoodsReceived", c.GoodsReceived)
	writeInt(b, "CarsIncoming", c.CarsIncoming)
	writeInt(b, "CarsOutgoing", c.CarsOutgoing)
	writeInt(b, "ReachableTargets", int64(c.ReachableTargets))
	b.WriteString("</City>")
}

func writeStationXML(b *strings.Builder, s StationReport) {
	b.WriteString("<Station id=\"")
	b.WriteString(strconv.FormatUint(s.ID, 10))
	b.WriteString("\">")
	writeElem(b, "Name", s.Name)
	writeInt(b, "X", int64(s.X))
	writeInt(b, "Y", int64(s.Y))
	writeElem(b, "Status", s.Status)
	if len(s.Waiting) > 0 {
		cats := make([]string, 0, len(s.Waiting))
		for c := range s.Waiting {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		b.WriteString("<Waiting>")
		for _, c := range cats {
			b.WriteString("<Goods category=\"")
			b.WriteString(xmlEscape(c))
			b.WriteString("\">")
			b.WriteString(strconv.FormatUint(uint64(s.Waiting[c]), 10))
			b.WriteString("</Goods>")
		}
		b.WriteString("</Waiting>")
	}
	writeInt(b, "Happy", s.Happy)
	writeInt(b, "Unhappy", s.Unhappy)
	writeInt(b, "NoRoute", s.NoRoute)
	writeInt(b, "Connexions", int64(s.Connexions))
	writeElem(b, "Overcrowded", strconv.FormatBool(s.Overcrowded))
	for _, l := range s.Lines {
		writeElem(b, "LineRef", l)
	}
	b.WriteString("</Station>")
}

func writeLineXML(b *strings.Builder, l LineReport) {
	b.WriteString("<Line id=\"")
	b.WriteString(strconv.FormatUint(l.ID, 10))
	b.WriteString("\">")
	writeElem(b, "Name", l.Name)
	writeElem(b, "Mirrored", strconv.FormatBool(l.Mirrored))
	writeInt(b, "Load", int64(l.Load))
	b.WriteString("<Stops>")
	for i, s := range l.Stops {
		b.WriteString("<Stop")
		if i < len(l.Legs) {
			b.WriteString(" leg=\"")
			b.WriteString(strconv.FormatUint(uint64(l.Legs[i]), 10))
			b.WriteString("\"")
		}
		b.WriteString(">")
		b.WriteString(xmlEscape(s))
		b.WriteString("</Stop>")
	}
	b.WriteString("</Stops>")
	b.WriteString("</Line>")
}

func writeElem(b *strings.Builder, name, v string) {
	if v == "" {
		return
	}
	b.WriteString("<" + name + ">")
	b.WriteString(xmlEscape(v))
	b.WriteString("</" + name + ">")
}

func writeInt(b *strings.Builder, name string, v int64) {
	writeElem(b, name, strconv.FormatInt(v, 10))
}

func xmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}
