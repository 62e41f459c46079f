package scorm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NavPosition places the pager controls in the viewer chrome.
type NavPosition string

const (
	NavLeft   NavPosition = "left"
	NavCenter NavPosition = "center"
	NavRight  NavPosition = "right"
)

// DefaultTitle is used when a package request supplies no title.
const DefaultTitle = "PDF Presentation"

// Fixed styling constants baked into every generated package. These are not
// caller-overridable.
const (
	styleTitleFont       = "Helvetica, Arial, sans-serif"
	styleTextFont        = "Georgia, 'Times New Roman', serif"
	styleAccentColor     = "#2a6496"
	styleBackgroundColor = "#f4f4f4"
	styleTextColor       = "#333333"
)

// Config is the per-package runtime configuration. All fields are optional
// on input; ApplyDefaults fills omissions. Unknown fields in a request are
// ignored at the decoding boundary.
type Config struct {
	Title               string       `json:"title"`
	Filename            string       `json:"filename"`
	SidebarDefaultOpen  *bool        `json:"sidebarDefaultOpen"`
	SlideSequenceLocked *bool        `json:"slideSequenceLocked"`
	NavPosition         NavPosition  `json:"navPosition"`
}

// ApplyDefaults fills unset fields: sidebar open, sequence locked, nav on
// the right, filename taken from the PDF's destination name.
func (c *Config) ApplyDefaults(pdfFilename string) {
	if c.SidebarDefaultOpen == nil {
		c.SidebarDefaultOpen = boolPtr(true)
	}
	if c.SlideSequenceLocked == nil {
		c.SlideSequenceLocked = boolPtr(true)
	}
	if c.NavPosition == "" {
		c.NavPosition = NavRight
	}
	if c.Filename == "" {
		c.Filename = pdfFilename
	}
}

// Validate rejects field values outside the schema. It does not apply
// defaults; call ApplyDefaults first.
func (c *Config) Validate() error {
	switch c.NavPosition {
	case NavLeft, NavCenter, NavRight:
		return nil
	default:
		return fmt.Errorf("invalid navPosition %q", c.NavPosition)
	}
}

func boolPtr(b bool) *bool { return &b }

// RenderConfigJS serializes the configuration as the Config.js shipped
// inside a package. Output is deterministic: identical input yields
// byte-identical output. Text fields are JSON-escaped for embedding.
func RenderConfigJS(c Config) string {
	var sb strings.Builder
	sb.WriteString("window.PdfPlayerConfig = {\n")
	fmt.Fprintf(&sb, "  \"title\": %s,\n", jsString(c.Title))
	fmt.Fprintf(&sb, "  \"filename\": %s,\n", jsString(c.Filename))
	fmt.Fprintf(&sb, "  \"sidebarDefaultOpen\": %t,\n", c.SidebarDefaultOpen != nil && *c.SidebarDefaultOpen)
	fmt.Fprintf(&sb, "  \"slideSequenceLocked\": %t,\n", c.SlideSequenceLocked != nil && *c.SlideSequenceLocked)
	fmt.Fprintf(&sb, "  \"navPosition\": %s,\n", jsString(string(c.NavPosition)))
	fmt.Fprintf(&sb, "  \"titleFont\": %s,\n", jsString(styleTitleFont))
	fmt.Fprintf(&sb, "  \"textFont\": %s,\n", jsString(styleTextFont))
	fmt.Fprintf(&sb, "  \"accentColor\": %s,\n", jsString(styleAccentColor))
	fmt.Fprintf(&sb, "  \"backgroundColor\": %s,\n", jsString(styleBackgroundColor))
	fmt.Fprintf(&sb, "  \"textColor\": %s\n", jsString(styleTextColor))
	sb.WriteString("};\n")
	return sb.String()
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
