package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/dashboard"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/navigation"
)

// LevelHandlers serve the organisation tree and its nodes
type LevelHandlers struct {
	service *dashboard.Service
}

// @Summary Organisation tree
// @Tags levels
// @Produce json
// @Success 200 {array} models.Level
// @Router /levels [get]
// @Security BearerAuth
func (h *LevelHandlers) Tree(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	tree, err := h.service.Tree(r.Context())
	if err != nil {
		fail(w, err, "failed to load levels", requestID)
		return
	}
	if tree == nil {
		tree = []*models.Level{}
	}
	respondWithJSON(w, http.StatusOK, tree)
}

// @Summary Browse the tree
// @Description Resolve the selection named by pid, cid and sid
// @Tags levels
// @Produce json
// @Param pid query string false "Parent level"
// @Param cid query string false "Child level"
// @Param sid query string false "Sensor"
// @Param summary query bool false "Attach the summary of the selected level"
// @Param refresh query bool false "Refetch the tree"
// @Success 200 {object} dashboard.Browse
// @Router /levels/browse [get]
// @Security BearerAuth
func (h *LevelHandlers) Browse(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	q := r.URL.Query()
	ctx := r.Context()

	if isTrue(q.Get("refresh")) {
		if _, err := h.service.RefreshTree(ctx); err != nil {
			fail(w, err, "failed to load levels", requestID)
			return
		}
	}

	b, err := h.service.Browse(ctx, navigation.ParseLocation(q), isTrue(q.Get("summary")))
	if err != nil {
		fail(w, err, "failed to load levels", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

// @Summary Organisation diagram
// @Tags levels
// @Produce json
// @Success 200 {object} diagram.Diagram
// @Router /levels/diagram [get]
// @Security BearerAuth
func (h *LevelHandlers) Diagram(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	d, err := h.service.Diagram(r.Context())
	if err != nil {
		fail(w, err, "failed to build diagram", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

// @Summary Level summary
// @Tags levels
// @Produce json
// @Param id path string true "Level ID"
// @Success 200 {object} models.DetailedLevelSummary
// @Failure 404 {object} errors.APIError
// @Router /levels/{id}/summary [get]
// @Security BearerAuth
func (h *LevelHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	summary, err := h.service.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err, "failed to load summary", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// @Summary Get a node
// @Tags nodes
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {object} models.Node
// @Failure 404 {object} errors.APIError
// @Router /nodes/{id} [get]
// @Security BearerAuth
func (h *LevelHandlers) GetNode(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	node, err := h.service.GetNode(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err, "failed to load node", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, node)
}

// @Summary Create a node
// @Tags nodes
// @Accept json
// @Produce json
// @Param node body models.NodeInput true "Node"
// @Success 201 {object} models.Node
// @Failure 400 {object} errors.APIError
// @Router /nodes [post]
// @Security BearerAuth
func (h *LevelHandlers) CreateNode(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.NodeInput
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	node, err := h.service.CreateNode(r.Context(), &in)
	if err != nil {
		fail(w, err, "failed to create node", requestID)
		return
	}
	respondWithJSON(w, http.StatusCreated, node)
}

// @Summary Update a node
// @Tags nodes
// @Accept json
// @Produce json
// @Param id path string true "Node ID"
// @Param node body models.NodeInput true "Node"
// @Success 200 {object} models.Node
// @Router /nodes/{id} [put]
// @Security BearerAuth
func (h *LevelHandlers) UpdateNode(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.NodeInput
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	node, err := h.service.UpdateNode(r.Context(), mux.Vars(r)["id"], &in)
	if err != nil {
		fail(w, err, "failed to update node", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, node)
}

// @Summary Delete a node
// @Description Delete a node; the caller must reload the tree before navigating
// @Tags nodes
// @Produce json
// @Param id path string true "Node ID"
// @Success 200 {object} dashboard.DeleteResult
// @Router /nodes/{id} [delete]
// @Security BearerAuth
func (h *LevelHandlers) DeleteNode(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	loc := navigation.ParseLocation(r.URL.Query())

	res, err := h.service.DeleteNode(r.Context(), mux.Vars(r)["id"], loc)
	if err != nil {
		fail(w, err, "failed to delete node", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func isTrue(v string) bool {
	switch v {
	case "1", "true", "yes":
		return true
	}
	return false
}
