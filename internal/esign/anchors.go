package esign

import "strconv"

// TabKind is the DocuSign tab collection a field is placed in
type TabKind string

const (
	TabSignHere   TabKind = "signHere"
	TabDateSigned TabKind = "dateSigned"
	TabFullName   TabKind = "fullName"
)

// AnchorSpec places one field relative to a literal marker in the document text
type AnchorSpec struct {
	Kind   TabKind
	Anchor string
	// offsets in pixels from the anchor's top-left corner
	XOffset int
	YOffset int
	// Optional anchors do not fail the send when missing from the document
	Optional bool
}

// DefaultAnchors match the markers printed by the contract and proposal templates
var DefaultAnchors = []AnchorSpec{
	{Kind: TabSignHere, Anchor: "Client Signature:", XOffset: 150, YOffset: -10},
	{Kind: TabDateSigned, Anchor: "Date:", XOffset: 50, YOffset: -5, Optional: true},
}

// BuildTabs turns anchor specs into the tab collections of one signer
func BuildTabs(specs []AnchorSpec) Tabs {
	var tabs Tabs
	for i, spec := range specs {
		tab := Tab{
			TabLabel:                 string(spec.Kind) + "_" + strconv.Itoa(i+1),
			DocumentID:               "1",
			RecipientID:              "1",
			AnchorString:             spec.Anchor,
			AnchorUnits:              "pixels",
			AnchorXOffset:            strconv.Itoa(spec.XOffset),
			AnchorYOffset:            strconv.Itoa(spec.YOffset),
			AnchorIgnoreIfNotPresent: strconv.FormatBool(spec.Optional),
			AnchorCaseSensitive:      "false",
		}
		switch spec.Kind {
		case TabSignHere:
			tabs.SignHereTabs = append(tabs.SignHereTabs, tab)
		case TabDateSigned:
			tabs.DateSignedTabs = append(tabs.DateSignedTabs, tab)
		case TabFullName:
			tabs.FullNameTabs = append(tabs.FullNameTabs, tab)
		}
	}
	return tabs
}
