package domain

// PageType is a coarse classification of a page's purpose, used to bias
// matching and rephrasing.
type PageType string

const (
	PageTypeJobPortal PageType = "job-portal"
	PageTypeEcommerce PageType = "ecommerce"
	PageTypeSocial    PageType = "social"
	PageTypeRental    PageType = "rental"
	PageTypeAuth      PageType = "auth"
	PageTypeSurvey    PageType = "survey"
	PageTypeContact   PageType = "contact"
	PageTypeGeneric   PageType = "generic"
)

// WebsiteContext describes the page a form lives on.
type WebsiteContext struct {
	PageType    PageType `json:"page_type"`
	FormPurpose string   `json:"form_purpose,omitempty"`
	Title       string   `json:"title,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// FrameInfo identifies the browsing-context frame a detection result
// came from. Depth is computed by walking the parent chain, capped at 10.
// Offset is the frame's accumulated position in top-document coordinates,
// summed over every ancestor frame's bounding box; zero for the main
// frame. Field rects are reported frame-local and corrected with this
// offset at merge time.
type FrameInfo struct {
	IsMainFrame bool   `json:"is_main_frame"`
	URL         string `json:"url,omitempty"`
	ParentURL   string `json:"parent_url,omitempty"`
	Depth       int    `json:"depth"`
	Offset      Rect   `json:"offset,omitempty"`
}

// DetectResult is the detection response that crosses the frame boundary.
type DetectResult struct {
	Success        bool            `json:"success"`
	Forms          []FormSnapshot  `json:"forms"`
	TotalFields    int             `json:"total_fields"`
	WebsiteContext *WebsiteContext `json:"website_context,omitempty"`
	FrameInfo      FrameInfo       `json:"frame_info"`
	Error          string          `json:"error,omitempty"`
}
