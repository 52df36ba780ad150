package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/relaycrm/crm-api/internal/models"
	"github.com/relaycrm/crm-api/internal/service"
	"github.com/relaycrm/crm-api/pkg/response"
)

// ToggleFilterRequest names the category key to flip in the filter session.
type ToggleFilterRequest struct {
	Category string `json:"category" binding:"required"`
}

// parseListRequest reads the shared list query parameters. The query string
// only overrides the saved search when the q parameter is actually present;
// from_list must be sent explicitly by list-view navigation, arriving any
// other way resets the page.
func parseListRequest(c *gin.Context, userID string) service.ListRequest {
	req := service.ListRequest{UserID: userID}

	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		req.Page = page
	}
	if values := c.Request.URL.Query(); values.Has("q") {
		q := values.Get("q")
		req.Query = &q
	}
	req.FromListView = c.Query("from_list") == "true" || c.Query("from_list") == "1"
	req.WithSidebar = c.Query("sidebar") == "true" || c.Query("sidebar") == "1"

	return req
}

// listResponse renders a ListResult in the common envelope. The sidebar
// tally and the session filter state ride in the meta block.
func listResponse(c *gin.Context, result *service.ListResult) {
	pagination := &models.Pagination{
		Page:       result.Page,
		PageSize:   result.PerPage,
		TotalCount: result.TotalFiltered,
	}
	meta := map[string]interface{}{
		"filter": result.State,
	}
	if result.Tally != nil {
		meta["tally"] = result.Tally
	}
	response.JSON(c, 200, result.Records, pagination, meta)
}
