// Package adminapi is the HTTP surface for operating and inspecting a
// node: cluster status, membership, and key/value reads/writes. It is
// built on gin-gonic, rs/cors and swaggo, the same stack declared in
// go.mod for this purpose.
package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/mossraft/raftcore/internal/adminapi/docs"
	"github.com/mossraft/raftcore/internal/node"
	"github.com/mossraft/raftcore/internal/statemachine"
	"github.com/mossraft/raftcore/raft"
)

// Handler is the subset of *node.Node the admin API depends on, kept
// narrow so it can be faked in tests.
type Handler interface {
	Status() node.Status
	Submit(entry raft.Entry) (*raft.EntryResult, error)
	StateMachine() *statemachine.KV
}

// New builds the gin engine serving the admin API plus its swagger UI.
func New(h Handler) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		body, err := docs.JSON()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", body)
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL("/swagger/doc.json")))

	r.GET("/status", func(c *gin.Context) { c.JSON(http.StatusOK, statusView(h.Status())) })
	r.GET("/nodes", func(c *gin.Context) { c.JSON(http.StatusOK, h.Status().Nodes) })

	r.POST("/entries", func(c *gin.Context) { handleSubmit(c, h) })
	r.GET("/entries/:key", func(c *gin.Context) { handleGet(c, h) })

	return cors.Default().Handler(r)
}

type statusResponse struct {
	SelfID      uint32  `json:"selfId"`
	Role        string  `json:"role"`
	Term        uint64  `json:"term"`
	Leader      *uint32 `json:"leader,omitempty"`
	CommitIndex uint64  `json:"commitIndex"`
	LastApplied uint64  `json:"lastApplied"`
}

func statusView(s node.Status) statusResponse {
	view := statusResponse{
		SelfID:      uint32(s.SelfID),
		Role:        s.Role.String(),
		Term:        uint64(s.Term),
		CommitIndex: uint64(s.CommitIndex),
		LastApplied: uint64(s.LastApplied),
	}
	if s.Leader != nil {
		id := uint32(*s.Leader)
		view.Leader = &id
	}
	return view
}

type submitRequest struct {
	Op    string `json:"op" binding:"required"`
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

func handleSubmit(c *gin.Context, h Handler) {
	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := statemachine.OpSet
	if body.Op == "delete" {
		kind = statemachine.OpDelete
	}
	payload := statemachine.EncodeOp(statemachine.Op{
		Kind:  kind,
		Key:   []byte(body.Key),
		Value: []byte(body.Value),
	})

	result, err := h.Submit(raft.Entry{Type: raft.EntryNormal, Payload: payload})
	if err != nil {
		if rerr, ok := err.(*raft.Error); ok && rerr.Code == raft.CodeNotLeader {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": uint64(result.AssignedIndex), "term": uint64(result.AssignedTerm)})
}

func handleGet(c *gin.Context, h Handler) {
	key := c.Param("key")
	v, ok := h.StateMachine().Get([]byte(key))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": string(v)})
}
