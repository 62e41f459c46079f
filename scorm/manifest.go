package scorm

import (
	"encoding/xml"
	"fmt"
)

// Manifest models the imsmanifest.xml an LMS consumes to import a package:
// one organization containing one item referencing one launchable resource.
type Manifest struct {
	XMLName       xml.Name      `xml:"manifest"`
	Identifier    string        `xml:"identifier,attr"`
	Version       string        `xml:"version,attr"`
	Xmlns         string        `xml:"xmlns,attr"`
	XmlnsADLCP    string        `xml:"xmlns:adlcp,attr"`
	Metadata      Metadata      `xml:"metadata"`
	Organizations Organizations `xml:"organizations"`
	Resources     Resources     `xml:"resources"`
}

type Metadata struct {
	Schema        string `xml:"schema"`
	SchemaVersion string `xml:"schemaversion"`
}

type Organizations struct {
	Default      string       `xml:"default,attr"`
	Organization Organization `xml:"organization"`
}

type Organization struct {
	Identifier string `xml:"identifier,attr"`
	Title      string `xml:"title"`
	Item       Item   `xml:"item"`
}

type Item struct {
	Identifier    string `xml:"identifier,attr"`
	IdentifierRef string `xml:"identifierref,attr"`
	Title         string `xml:"title"`
}

type Resources struct {
	Resource Resource `xml:"resource"`
}

type Resource struct {
	Identifier string `xml:"identifier,attr"`
	Type       string `xml:"type,attr"`
	ScormType  string `xml:"adlcp:scormtype,attr"`
	Href       string `xml:"href,attr"`
	Files      []File `xml:"file"`
}

type File struct {
	Href string `xml:"href,attr"`
}

// BuildManifest produces the package descriptor. files must be relative,
// forward-slash separated paths and are listed in the given order. The
// builder does not check that the files exist; the assembler enumerates
// what it actually staged before calling in.
func BuildManifest(packageID, title, launchFile string, files []string) Manifest {
	fileList := make([]File, len(files))
	for i, f := range files {
		fileList[i] = File{Href: f}
	}
	return Manifest{
		Identifier: packageID,
		Version:    "1.0",
		Xmlns:      "http://www.imsproject.org/xsd/imscp_rootv1p1p2",
		XmlnsADLCP: "http://www.adlnet.org/xsd/adlcp_rootv1p2",
		Metadata: Metadata{
			Schema:        "ADL SCORM",
			SchemaVersion: "1.2",
		},
		Organizations: Organizations{
			Default: packageID + "-org",
			Organization: Organization{
				Identifier: packageID + "-org",
				Title:      title,
				Item: Item{
					Identifier:    packageID + "-item",
					IdentifierRef: packageID + "-res",
					Title:         title,
				},
			},
		},
		Resources: Resources{
			Resource: Resource{
				Identifier: packageID + "-res",
				Type:       "webcontent",
				ScormType:  "sco",
				Href:       launchFile,
				Files:      fileList,
			},
		},
	}
}

// Encode serializes the manifest as an XML document. Titles and attribute
// values are escaped by the encoder.
func (m Manifest) Encode() ([]byte, error) {
	body, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
