package controller

import (
	"net/http"
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/admin/handler/runs"
	"github.com/gin-gonic/gin"
)

type Runs interface {
	StartRun(ctx *gin.Context)
	ForceRun(ctx *gin.Context)
	RunByFrequency(ctx *gin.Context)
	PromoteIndex(ctx *gin.Context)
	GetCollectionInfo(ctx *gin.Context)
}

var (
	runsController Runs
	onceRuns       sync.Once
)

type RunsController struct {
	RunHandler runs.Manager
}

func NewRunsController() Runs {
	if runsController == nil {
		onceRuns.Do(func() {
			runsController = &RunsController{
				RunHandler: runs.NewManager(runs.DefaultVersion),
			}
		})
	}
	return runsController
}

func (r *RunsController) StartRun(ctx *gin.Context) {
	request := runs.StartRunRequest{Indexer: ctx.Param("name")}
	response, err := r.RunHandler.StartRun(&request)
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (r *RunsController) ForceRun(ctx *gin.Context) {
	request := runs.StartRunRequest{Indexer: ctx.Param("name")}
	response, err := r.RunHandler.ForceRun(&request)
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (r *RunsController) RunByFrequency(ctx *gin.Context) {
	var request runs.RunByFrequencyRequest
	if !bindJSON(ctx, &request) {
		return
	}
	response, err := r.RunHandler.RunByFrequency(&request)
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (r *RunsController) PromoteIndex(ctx *gin.Context) {
	request := runs.PromoteIndexRequest{Index: ctx.Param("name")}
	// The body is optional; it only carries the read host override.
	if ctx.Request.ContentLength > 0 {
		if !bindJSON(ctx, &request) {
			return
		}
		request.Index = ctx.Param("name")
	}
	if err := r.RunHandler.PromoteIndex(&request); err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Index promoted successfully"})
}

func (r *RunsController) GetCollectionInfo(ctx *gin.Context) {
	request := runs.CollectionInfoRequest{Index: ctx.Param("name")}
	response, err := r.RunHandler.GetCollectionInfo(&request)
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, response)
}
