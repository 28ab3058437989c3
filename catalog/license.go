package catalog

// License ids assigned outside of registry matching.
const (
	LicenseOtherPublicDomain = "other-pd"
	LicenseOtherClosed       = "other-closed"
	LicenseNotSpecified      = "notspecified"
)

// License is one entry of the license registry.
type License struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Registry holds known licenses for rights statement matching.
type Registry struct {
	Licenses []License
}

// Match compares text against every license url, id and title. Matching is
// exact and case sensitive; free-form rights prose will usually not match
// and is kept as an extra by the caller instead.
func (r *Registry) Match(text string) (id string, ok bool) {
	for _, lic := range r.Licenses {
		if text == lic.URL || text == lic.ID || text == lic.Title {
			return lic.ID, true
		}
	}
	return "", false
}

// DefaultRegistry mirrors the common opendefinition license list.
var DefaultRegistry = &Registry{
	Licenses: []License{
		{"cc-by", "Creative Commons Attribution", "http://www.opendefinition.org/licenses/cc-by"},
		{"cc-by-sa", "Creative Commons Attribution Share-Alike", "http://www.opendefinition.org/licenses/cc-by-sa"},
		{"cc-zero", "Creative Commons CCZero", "http://www.opendefinition.org/licenses/cc-zero"},
		{"cc-nc", "Creative Commons Non-Commercial (Any)", "http://creativecommons.org/licenses/by-nc/2.0/"},
		{"odc-pddl", "Open Data Commons Public Domain Dedication and Licence (PDDL)", "http://www.opendefinition.org/licenses/odc-pddl"},
		{"odc-odbl", "Open Data Commons Open Database License (ODbL)", "http://www.opendefinition.org/licenses/odc-odbl"},
		{"odc-by", "Open Data Commons Attribution License", "http://www.opendefinition.org/licenses/odc-by"},
		{"gfdl", "GNU Free Documentation License", "http://www.opendefinition.org/licenses/gfdl"},
		{"uk-ogl", "UK Open Government Licence (OGL)", "http://reference.data.gov.uk/id/open-government-licence"},
		{"other-open", "Other (Open)", ""},
		{"other-at", "Other (Attribution)", ""},
		{LicenseOtherPublicDomain, "Other (Public Domain)", ""},
		{LicenseOtherClosed, "Other (Not Open)", ""},
		{LicenseNotSpecified, "License Not Specified", ""},
	},
}
