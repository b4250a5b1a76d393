package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/open-landscape/landscaper/internal/graph"
	"github.com/open-landscape/landscaper/internal/metrics"
	"github.com/open-landscape/landscaper/models"
)

// graphQuery carries the parsed query parameters shared by the graph
// endpoints.
type graphQuery struct {
	at          int64
	timeframe   int64
	geo         bool
	filterTypes []string
	filterThese bool
}

// parseGraphQuery reads timestamp, timeframe, geo, filter-nodes and
// filter-these. The timestamp defaults to now, the timeframe to zero and
// filter-these to true (drop the listed types).
func parseGraphQuery(c echo.Context) (graphQuery, error) {
	q := graphQuery{at: time.Now().Unix(), filterThese: true}

	if raw := c.QueryParam("timestamp"); raw != "" {
		at, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || at < 0 {
			return q, BadRequestError("Invalid timestamp", "timestamp must be a positive epoch value. Got: "+raw)
		}
		q.at = at
	}

	if raw := c.QueryParam("timeframe"); raw != "" {
		timeframe, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || timeframe < 0 {
			return q, BadRequestError("Invalid timeframe", "timeframe must be a positive number of seconds. Got: "+raw)
		}
		q.timeframe = timeframe
	}

	if raw := c.QueryParam("geo"); raw != "" {
		geo, err := strconv.ParseBool(raw)
		if err != nil {
			return q, BadRequestError("Invalid geo flag", "geo must be a boolean. Got: "+raw)
		}
		q.geo = geo
	}

	if raw := c.QueryParam("filter-these"); raw != "" {
		filterThese, err := strconv.ParseBool(raw)
		if err != nil {
			return q, BadRequestError("Invalid filter-these flag", "filter-these must be a boolean. Got: "+raw)
		}
		q.filterThese = filterThese
	}

	if raw := c.QueryParam("filter-nodes"); raw != "" {
		types, err := parseTypeList(raw)
		if err != nil {
			return q, BadRequestError("Invalid filter-nodes", "filter-nodes must be a JSON list or comma separated types. Got: "+raw)
		}
		q.filterTypes = types
	}

	return q, nil
}

// parseTypeList accepts both a JSON array and a plain comma separated
// list of node types.
func parseTypeList(raw string) ([]string, error) {
	if strings.HasPrefix(strings.TrimSpace(raw), "[") {
		var types []string
		if err := json.Unmarshal([]byte(raw), &types); err != nil {
			return nil, err
		}
		return types, nil
	}
	var types []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types, nil
}

// respondGraph renders a graph as node-link JSON or, with geo=true, as a
// GeoJSON feature collection of the located nodes.
func respondGraph(c echo.Context, g *models.Graph, q graphQuery) error {
	if len(q.filterTypes) > 0 {
		g = g.FilterTypes(q.filterTypes, q.filterThese)
	}
	if q.geo {
		return c.JSON(http.StatusOK, g.GeoJSON())
	}
	return c.JSON(http.StatusOK, g)
}

// getGraph returns the whole landscape living at the queried instant.
func (s *Server) getGraph(c echo.Context) error {
	timer := observe("graph")
	defer timer()

	q, err := parseGraphQuery(c)
	if err != nil {
		return err
	}

	g, err := s.store.GetGraph(c.Request().Context(), q.at, q.timeframe)
	if err != nil {
		return InternalError("Failed to query the landscape", err.Error())
	}
	return respondGraph(c, g, q)
}

// getSubgraph returns a node and everything reachable from it.
func (s *Server) getSubgraph(c echo.Context) error {
	timer := observe("subgraph")
	defer timer()

	q, err := parseGraphQuery(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	g, err := s.store.GetSubgraph(c.Request().Context(), id, q.at, q.timeframe)
	if err != nil {
		return InternalError("Failed to query the landscape", err.Error())
	}
	if g.Len() == 0 {
		return nodeError(&graph.NodeError{ID: id, Reason: "not in the landscape."})
	}
	return respondGraph(c, g, q)
}

// getNode returns a single landscape node.
func (s *Server) getNode(c echo.Context) error {
	timer := observe("node")
	defer timer()

	q, err := parseGraphQuery(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	g, err := s.store.GetNode(c.Request().Context(), id, q.at, q.timeframe)
	if err != nil {
		return InternalError("Failed to query the landscape", err.Error())
	}
	if g.Len() == 0 {
		return nodeError(&graph.NodeError{ID: id, Reason: "not in the landscape."})
	}
	return respondGraph(c, g, q)
}

// queryNodes returns the living nodes matching the given properties,
// passed as a JSON object in the "properties" parameter.
func (s *Server) queryNodes(c echo.Context) error {
	timer := observe("nodes")
	defer timer()

	q, err := parseGraphQuery(c)
	if err != nil {
		return err
	}

	props := map[string]any{}
	if raw := c.QueryParam("properties"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &props); err != nil {
			return BadRequestError("Invalid properties", "properties must be a JSON object. Got: "+raw)
		}
	}

	g, err := s.store.QueryNodes(c.Request().Context(), props, q.at, q.timeframe)
	if err != nil {
		return InternalError("Failed to query the landscape", err.Error())
	}
	return respondGraph(c, g, q)
}

// putCoordinates applies geographic positions to a batch of nodes. The
// whole batch is validated before anything is written; a bad entry fails
// the request with the offending node id and leaves the landscape
// untouched.
func (s *Server) putCoordinates(c echo.Context) error {
	var updates []models.CoordinateUpdate
	if err := c.Bind(&updates); err != nil {
		return BadRequestError("Invalid request body", err.Error())
	}
	if len(updates) == 0 {
		return BadRequestError("Invalid request body", "at least one coordinate update is required")
	}
	for _, update := range updates {
		if err := s.validate.Struct(update); err != nil {
			return BadRequestError("Invalid coordinate update", err.Error())
		}
	}

	err := s.store.SetCoordinates(c.Request().Context(), updates,
		s.config.PhysicalLayer.GeoTypes, time.Now().Unix())
	if err != nil {
		var ne *graph.NodeError
		if errors.As(err, &ne) {
			return nodeError(ne)
		}
		return InternalError("Failed to update coordinates", err.Error())
	}

	s.broadcastCoordinates(updates)
	return c.JSON(http.StatusOK, map[string]any{"updated": len(updates)})
}

// observe returns a stop function recording the query latency.
func observe(endpoint string) func() {
	start := time.Now()
	return func() {
		metrics.GraphQueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
