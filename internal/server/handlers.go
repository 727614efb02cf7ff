package server

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/linkd/internal/audit"
	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/ingest"
	"github.com/fyrsmithlabs/linkd/internal/meta"
	"github.com/fyrsmithlabs/linkd/internal/recommend"
	"github.com/fyrsmithlabs/linkd/internal/seo"
)

func badRequest(message string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}

func internal(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// --- catalog sync ---

type syncResponse struct {
	Success bool `json:"success"`
	*ingest.Result
}

func (s *Server) handleCatalogSync(c echo.Context) error {
	var req ingest.Request
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(err.Error())
	}

	res, err := s.opts.Ingest.Sync(c.Request().Context(), &req)
	if err != nil {
		return internal(err)
	}
	return c.JSON(http.StatusOK, syncResponse{Success: true, Result: res})
}

func (s *Server) handleCatalogDelete(c echo.Context) error {
	var req struct {
		PostID int `json:"postId"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.PostID <= 0 {
		return badRequest("postId is required")
	}

	if err := s.opts.Ingest.Delete(c.Request().Context(), req.PostID); err != nil {
		return internal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"action":  ingest.ActionDeleted,
		"postId":  req.PostID,
	})
}

type batchSyncResponse struct {
	Success bool `json:"success"`
	*ingest.BatchResult
}

func (s *Server) handleCatalogSyncBatch(c echo.Context) error {
	var req struct {
		Articles []*ingest.Request `json:"articles"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if len(req.Articles) == 0 {
		return badRequest("articles is required")
	}

	res := s.opts.Ingest.SyncBatch(c.Request().Context(), req.Articles)
	return c.JSON(http.StatusOK, batchSyncResponse{Success: true, BatchResult: res})
}

// --- smart link ---

func (s *Server) handleSmartLink(c echo.Context) error {
	var req recommend.Request
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return badRequest("content is required")
	}

	resp, err := s.opts.Recommend.SmartLink(c.Request().Context(), &req)
	if err != nil {
		return internal(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// --- link audit ---

type auditResponse struct {
	Success bool          `json:"success"`
	PostID  int           `json:"postId,omitempty"`
	Audit   *audit.Report `json:"audit"`
}

func (s *Server) handleLinkAudit(c echo.Context) error {
	var req audit.Request
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return badRequest("content is required")
	}

	report, err := s.opts.Audit.Audit(c.Request().Context(), &req)
	if err != nil {
		return internal(err)
	}
	return c.JSON(http.StatusOK, auditResponse{Success: true, PostID: req.PostID, Audit: report})
}

// --- meta generate ---

type metaResponse struct {
	Success bool `json:"success"`
	*meta.Result
}

func (s *Server) handleMetaGenerate(c echo.Context) error {
	var req meta.Request
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return badRequest("title is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return badRequest("content is required")
	}

	res, err := s.opts.Meta.Generate(c.Request().Context(), &req)
	if err != nil {
		return internal(err)
	}
	return c.JSON(http.StatusOK, metaResponse{Success: true, Result: res})
}

// --- dismissed opportunities ---

// Dismiss actions.
const (
	actionDismiss     = "dismiss"
	actionRestore     = "restore"
	actionBulkDismiss = "bulk_dismiss"
	actionClear       = "clear"
)

type dismissRequest struct {
	SourceID  int    `json:"sourceId"`
	TargetID  int    `json:"targetId,omitempty"`
	TargetIDs []int  `json:"targetIds,omitempty"`
	Action    string `json:"action,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Persist   *bool  `json:"persist,omitempty"`
}

func (s *Server) handleDismissGet(c echo.Context) error {
	var q struct {
		SourceID int `query:"sourceId"`
	}
	if err := c.Bind(&q); err != nil || q.SourceID <= 0 {
		return badRequest("sourceId is required")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"sourceId":  q.SourceID,
		"dismissed": s.opts.SEO.Dismissed(q.SourceID),
	})
}

func (s *Server) handleDismissPost(c echo.Context) error {
	var req dismissRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.SourceID <= 0 {
		return badRequest("sourceId is required")
	}
	if req.Action == "" {
		req.Action = actionDismiss
	}
	persist := req.Persist == nil || *req.Persist

	ctx := c.Request().Context()
	switch req.Action {
	case actionDismiss:
		if req.TargetID <= 0 {
			return badRequest("targetId is required for dismiss")
		}
		if err := s.opts.SEO.Dismiss(ctx, req.SourceID, req.TargetID, req.Reason, persist); err != nil {
			return internal(err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true, "action": req.Action,
			"sourceId": req.SourceID, "targetId": req.TargetID,
		})

	case actionRestore:
		if req.TargetID <= 0 {
			return badRequest("targetId is required for restore")
		}
		if err := s.opts.SEO.Restore(ctx, req.SourceID, req.TargetID, persist); err != nil {
			return internal(err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true, "action": req.Action,
			"sourceId": req.SourceID, "targetId": req.TargetID,
		})

	case actionBulkDismiss:
		if len(req.TargetIDs) == 0 {
			return badRequest("targetIds is required for bulk_dismiss")
		}
		for _, id := range req.TargetIDs {
			if err := s.opts.SEO.Dismiss(ctx, req.SourceID, id, req.Reason, persist); err != nil {
				return internal(err)
			}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true, "action": req.Action,
			"sourceId": req.SourceID, "count": len(req.TargetIDs),
		})

	case actionClear:
		if err := s.opts.SEO.ClearDismissed(ctx, req.SourceID, persist); err != nil {
			return internal(err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true, "action": req.Action, "sourceId": req.SourceID,
		})

	default:
		return badRequest("action must be dismiss, restore, bulk_dismiss, or clear")
	}
}

func (s *Server) handleDismissDelete(c echo.Context) error {
	var req dismissRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.SourceID <= 0 {
		return badRequest("sourceId is required")
	}
	persist := req.Persist == nil || *req.Persist

	if err := s.opts.SEO.ClearDismissed(c.Request().Context(), req.SourceID, persist); err != nil {
		return internal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true, "action": actionClear, "sourceId": req.SourceID,
	})
}

// --- seo metrics ---

type seoMetricsRequest struct {
	RefreshCache                *bool `json:"refreshCache" query:"refreshCache"`
	IncludeOverusedAnchors      *bool `json:"includeOverusedAnchors" query:"includeOverusedAnchors"`
	IncludePageRankDistribution *bool `json:"includePageRankDistribution" query:"includePageRankDistribution"`
	IncludeContentTypeBreakdown *bool `json:"includeContentTypeBreakdown" query:"includeContentTypeBreakdown"`
	TopOverusedLimit            int   `json:"topOverusedLimit" query:"topOverusedLimit"`
}

type seoMetricsResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	*seo.Report
}

func (s *Server) handleSEOMetrics(c echo.Context) error {
	req := seoMetricsRequest{}
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	orTrue := func(b *bool) bool { return b == nil || *b }

	if orTrue(req.RefreshCache) {
		if err := s.opts.SEO.Refresh(c.Request().Context(), false); err != nil {
			return internal(err)
		}
	}

	report := s.opts.SEO.Report(seo.ReportOptions{
		IncludeOverusedAnchors:      orTrue(req.IncludeOverusedAnchors),
		IncludePageRankDistribution: orTrue(req.IncludePageRankDistribution),
		IncludeContentTypeBreakdown: orTrue(req.IncludeContentTypeBreakdown),
		TopOverusedLimit:            req.TopOverusedLimit,
	})
	return c.JSON(http.StatusOK, seoMetricsResponse{
		Success:   true,
		Timestamp: time.Now().UTC(),
		Report:    report,
	})
}

// --- catalog stats ---

type namedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type statsArticle struct {
	PostID       int    `json:"postId"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ContentType  string `json:"contentType"`
	TopicCluster string `json:"topicCluster,omitempty"`
	FunnelStage  string `json:"funnelStage,omitempty"`
	IsPillar     bool   `json:"isPillar,omitempty"`
}

func (s *Server) handleCatalogStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := s.opts.Store.Stats(ctx)
	if err != nil {
		return internal(err)
	}
	articles, err := s.opts.Lister.Articles(ctx)
	if err != nil {
		return internal(err)
	}

	var pages, posts, pillars int
	clusterCounts := map[string]int{}
	stageCounts := map[string]int{}
	personaCounts := map[string]int{}
	list := make([]statsArticle, 0, len(articles))
	for _, a := range articles {
		switch a.ContentType {
		case catalog.TypePage:
			pages++
		default:
			posts++
		}
		if a.IsPillar {
			pillars++
		}
		if a.TopicCluster != "" {
			clusterCounts[a.TopicCluster]++
		}
		stage := a.FunnelStage
		if stage == "" {
			stage = catalog.StageUnknown
		}
		stageCounts[stage]++
		if a.TargetPersona != "" {
			personaCounts[a.TargetPersona]++
		}
		list = append(list, statsArticle{
			PostID:       a.PostID,
			Title:        a.Title,
			URL:          a.URL,
			ContentType:  a.ContentType,
			TopicCluster: a.TopicCluster,
			FunnelStage:  a.FunnelStage,
			IsPillar:     a.IsPillar,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PostID < list[j].PostID })

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"stats": map[string]any{
			"totalVectorized": stats.TotalArticles,
			"pages":           pages,
			"posts":           posts,
			"pillars":         pillars,
			"dimension":       stats.VectorSize,
			"indexFullness":   0.0,
		},
		"clusters":     sortedCounts(clusterCounts),
		"funnelStages": stageCounts,
		"personas":     sortedCounts(personaCounts),
		"articles":     list,
	})
}

// sortedCounts renders a histogram as a stable list, largest first.
func sortedCounts(counts map[string]int) []namedCount {
	out := make([]namedCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, namedCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// --- health ---

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	services := map[string]string{
		"llm":        providerStatus(s.opts.LLMConfigured),
		"embeddings": providerStatus(s.opts.EmbeddingsConfigured),
	}

	status := "ok"
	code := http.StatusOK
	if err := s.opts.Store.HealthCheck(ctx); err != nil {
		services["vectorIndex"] = "unreachable"
		status = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		services["vectorIndex"] = "ok"
	}
	if !s.opts.LLMConfigured || !s.opts.EmbeddingsConfigured {
		status = "degraded"
	}

	return c.JSON(code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"services":  services,
	})
}

func providerStatus(configured bool) string {
	if configured {
		return "ok"
	}
	return "not_configured"
}
