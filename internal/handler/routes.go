package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every API handler. Nil members are not mounted.
type Handlers struct {
	Tasks    *TaskHandler
	Bin      *BinHandler
	Students *StudentHandler
	Bridge   *BridgeHandler
	Exports  *ExportHandler
	Metrics  *MetricsHandler
}

// Register mounts the API routes on api, typically the API_PREFIX group.
func (h Handlers) Register(api gin.IRouter) {
	if h.Tasks != nil {
		tasks := api.Group("/tasks")
		tasks.GET("", h.Tasks.List)
		tasks.POST("", h.Tasks.Create)
		tasks.GET("/export", h.Tasks.Export)
		tasks.DELETE("/clear-completed", h.Tasks.ClearCompleted)
		tasks.PUT("/:id", h.Tasks.Update)
		tasks.DELETE("/:id", h.Tasks.Delete)
	}
	if h.Bin != nil {
		bin := api.Group("/bin")
		bin.GET("", h.Bin.List)
		bin.DELETE("", h.Bin.Empty)
		bin.POST("/:id/restore", h.Bin.Restore)
		bin.DELETE("/:id", h.Bin.Purge)
	}
	if h.Students != nil {
		students := api.Group("/students")
		students.GET("", h.Students.List)
		students.POST("", h.Students.Create)
		if h.Bridge != nil {
			students.GET("/export", h.Bridge.Export)
			students.POST("/reconcile", h.Bridge.Reconcile)
			students.POST("/validate", h.Bridge.Validate)
			students.POST("/import", h.Bridge.Import)
		}
		students.GET("/:id", h.Students.Get)
		students.PUT("/:id", h.Students.Update)
		students.DELETE("/:id", h.Students.Delete)
	}
	if h.Exports != nil {
		api.POST("/exports/:collection", h.Exports.Create)
		api.GET("/exports/:token", h.Exports.Download)
	}
	if h.Metrics != nil {
		api.GET("/metrics/summary", h.Metrics.Snapshot)
	}
}
