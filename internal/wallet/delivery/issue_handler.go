package delivery

import (
	"net/http"

	walletusecase "leduo-backend/internal/wallet/usecase"

	"github.com/gin-gonic/gin"
)

// IssueHandler serves the pass artifacts the storefront relays to a
// customer: the .pkpass download and the Save-to-Google-Wallet URL.
type IssueHandler struct {
	issue walletusecase.IssueService
}

func NewIssueHandler(issue walletusecase.IssueService) *IssueHandler {
	return &IssueHandler{issue: issue}
}

// ApplePass handles POST /api/proxy/issue-apple-pass/:userId
func (h *IssueHandler) ApplePass(c *gin.Context) {
	archive, renderedAt, err := h.issue.IssueApplePass(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Header("Last-Modified", renderedAt.UTC().Format(http.TimeFormat))
	c.Header("Content-Disposition", `attachment; filename="leduo.pkpass"`)
	c.Data(http.StatusOK, "application/vnd.apple.pkpass", archive)
}

// GoogleLink handles POST /api/proxy/issue-google-link/:userId
func (h *IssueHandler) GoogleLink(c *gin.Context) {
	link, err := h.issue.IssueGoogleLink(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saveUrl": link})
}
