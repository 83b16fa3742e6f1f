// Package catalog holds the selectable companies, vessels and hull jobs of the
// filter form.
package catalog

// Company is a vessel operator.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Vessel belongs to exactly one company.
type Vessel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CompanyID string `json:"companyId"`
}

// HullJob is a maintenance activity a data point can be tagged with.
type HullJob struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalog is a read-only set of filter choices.
type Catalog struct {
	Companies []Company `json:"companies"`
	Vessels   []Vessel  `json:"vessels"`
	HullJobs  []HullJob `json:"hullJobs"`

	companies map[string]Company
	vessels   map[string]Vessel
	hullJobs  map[string]HullJob
}

// New indexes the given lists.
func New(companies []Company, vessels []Vessel, hullJobs []HullJob) *Catalog {
	c := &Catalog{
		Companies: companies,
		Vessels:   vessels,
		HullJobs:  hullJobs,
		companies: make(map[string]Company, len(companies)),
		vessels:   make(map[string]Vessel, len(vessels)),
		hullJobs:  make(map[string]HullJob, len(hullJobs)),
	}
	for _, v := range companies {
		c.companies[v.ID] = v
	}
	for _, v := range vessels {
		c.vessels[v.ID] = v
	}
	for _, v := range hullJobs {
		c.hullJobs[v.ID] = v
	}
	return c
}

// Default returns the built-in fleet.
func Default() *Catalog {
	return New(
		[]Company{
			{ID: "cmp2", Name: "Company 1"},
			{ID: "cmp1", Name: "Company 2"},
			{ID: "cmp3", Name: "Company 3"},
		},
		[]Vessel{
			{ID: "vessel1", Name: "Vessel Alpha", CompanyID: "cmp2"},
			{ID: "vessel2", Name: "Vessel Beta", CompanyID: "cmp2"},
			{ID: "vessel3", Name: "Vessel Gamma", CompanyID: "cmp1"},
			{ID: "vessel4", Name: "Vessel Delta", CompanyID: "cmp3"},
		},
		[]HullJob{
			{ID: "03573a58-6a32-4433-9e1a-9f9d31c71edb", Name: "Hull Inspection (HI)"},
			{ID: "b10dd87b-68b4-496d-9b60-39cf9f03c0bb", Name: "Propeller Polish (PP)"},
			{ID: "ee828f1f-f1cd-4962-a980-12ccc4e48e7b", Name: "Hull Cleaning (HC)"},
			{ID: "3a95d310-64bc-4599-8c4d-9304d12bb986", Name: "Propeller Inspection (PI)"},
			{ID: "c854b265-067c-4b7a-8d6a-d00f7304297b", Name: "Drydock (DD)"},
		},
	)
}

// Company looks up a company by id.
func (c *Catalog) Company(id string) (Company, bool) {
	v, ok := c.companies[id]
	return v, ok
}

// Vessel looks up a vessel by id.
func (c *Catalog) Vessel(id string) (Vessel, bool) {
	v, ok := c.vessels[id]
	return v, ok
}

// HullJob looks up a hull job by id.
func (c *Catalog) HullJob(id string) (HullJob, bool) {
	v, ok := c.hullJobs[id]
	return v, ok
}

// VesselsOf lists the vessels of the given companies, in catalog order.
func (c *Catalog) VesselsOf(companyIDs ...string) []Vessel {
	want := make(map[string]struct{}, len(companyIDs))
	for _, id := range companyIDs {
		want[id] = struct{}{}
	}
	var out []Vessel
	for _, v := range c.Vessels {
		if _, ok := want[v.CompanyID]; ok {
			out = append(out, v)
		}
	}
	return out
}

// FirstCompanyID returns the id preselected in the filter form.
func (c *Catalog) FirstCompanyID() string {
	if len(c.Companies) == 0 {
		return ""
	}
	return c.Companies[0].ID
}
