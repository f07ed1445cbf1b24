package dto

type CreateConfluencePageRequest struct {
	SpaceKey string `json:"space_key" binding:"required,max=255"`
	Title    string `json:"title" binding:"required,max=255"`
	Content  string `json:"content" binding:"required"`
	ParentID string `json:"parent_id" binding:"max=64"`
}

type ConfluencePageResponse struct {
	Message  string `json:"message"`
	PageID   string `json:"page_id"`
	Title    string `json:"title"`
	SpaceKey string `json:"space_key"`
	URL      string `json:"url,omitempty"`
}
