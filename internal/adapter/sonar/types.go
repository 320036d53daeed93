package sonar

// analysesResponse is the body of api/project_analyses/search.
type analysesResponse struct {
	Analyses []struct {
		Key  string `json:"key"`
		Date string `json:"date"`
	} `json:"analyses"`
}

// issuesResponse is the body of api/issues/search.
type issuesResponse struct {
	Total  int `json:"total"`
	Paging struct {
		PageIndex int `json:"pageIndex"`
		PageSize  int `json:"pageSize"`
		Total     int `json:"total"`
	} `json:"paging"`
	Issues []issueRecord `json:"issues"`
}

// issueRecord is a single issue as reported by the API. Component is
// "projectKey:relative/path"; Line is absent for file-level issues.
type issueRecord struct {
	Key       string `json:"key"`
	Rule      string `json:"rule"`
	Severity  string `json:"severity"`
	Component string `json:"component"`
	Line      *int   `json:"line,omitempty"`
	Message   string `json:"message"`
}

// measuresResponse is the body of api/measures/component.
type measuresResponse struct {
	Component struct {
		Measures []struct {
			Metric string `json:"metric"`
			Value  string `json:"value"`
		} `json:"measures"`
	} `json:"component"`
}
