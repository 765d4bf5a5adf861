package controller

import (
	"net/http"
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/admin/handler/registry"
	"github.com/Meesho/BharatMLStack/iris/pkg/api"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Registry interface {
	RegisterFrequency(ctx *gin.Context)
	RegisterStore(ctx *gin.Context)
	RegisterDataSource(ctx *gin.Context)
	RegisterSkillset(ctx *gin.Context)
	ProbeSkillset(ctx *gin.Context)
	RegisterIndex(ctx *gin.Context)
	RegisterIndexer(ctx *gin.Context)
	StageDocuments(ctx *gin.Context)
}

var (
	registryController Registry
	once               sync.Once
)

type RegistryController struct {
	RegistryHandler registry.Manager
}

func NewRegistryController() Registry {
	if registryController == nil {
		once.Do(func() {
			registryController = &RegistryController{
				RegistryHandler: registry.NewHandler(registry.DefaultVersion),
			}
		})
	}
	return registryController
}

// bindJSON decodes the request body into request. On failure it writes the
// 400 response itself and returns false, so handlers can just return.
func bindJSON(ctx *gin.Context, request interface{}) bool {
	if err := ctx.BindJSON(request); err != nil {
		log.Error().Err(err).Msg("Error in binding request body")
		abortWithError(ctx, http.StatusBadRequest, err)
		return false
	}
	return true
}

func abortWithError(ctx *gin.Context, status int, err error) {
	if status == http.StatusInternalServerError {
		_ = ctx.Error(api.NewInternalServerError(err.Error()))
	} else {
		_ = ctx.Error(api.NewBadRequestError(err.Error()))
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}

func (r *RegistryController) RegisterFrequency(ctx *gin.Context) {
	var request registry.CreateFrequencyRequest
	if !bindJSON(ctx, &request) {
		return
	}
	if err := r.RegistryHandler.RegisterFrequency(&request); err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Frequency registered successfully"})
}

func (r *RegistryController) RegisterStore(ctx *gin.Context) {
	var request registry.CreateStoreRequest
	if !bindJSON(ctx, &request) {
		return
	}
	if err := r.RegistryHandler.RegisterStore(&request); err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Store registered successfully"})
}

func (r *RegistryController) RegisterDataSource(ctx *gin.Context) {
	var request registry.RegisterDataSourceRequest
	if !bindJSON(ctx, &request) {
		return
	}
	if err := r.RegistryHandler.RegisterDataSource(&request); err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Data source registered successfully"})
}

func (r *RegistryController) RegisterSkillset(ctx *gin.Context) {
	var request registry.RegisterSkillsetRequest
	if !bindJSON(ctx, &request) {
		return
	}
	if err := r.RegistryHandler.RegisterSkillset(&request); err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Skillset registered successfully"})
}

func (r *RegistryController) ProbeSkillset(ctx *gin.Context) {
	var request registry.ProbeSkillsetRequest
	if !bindJSON(ctx, &request) {
		return
	}
	response, err := r.RegistryHandler.ProbeSkillset(&request)
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, response)
}

func (r *RegistryController) RegisterIndex(ctx *gin.Context) {
	var request registry.RegisterIndexRequest
	if !bindJSON(ctx, &request) {
		return
	}
	if err := r.RegistryHandler.RegisterIndex(&request); err != nil {
		abortWithError(ctx, http.StatusInternalServerError, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Index registered successfully"})
}

func (r *RegistryController) RegisterIndexer(ctx *gin.Context) {
	var request registry.RegisterIndexerRequest
	if !bindJSON(ctx, &request) {
		return
	}
	if err := r.RegistryHandler.RegisterIndexer(&request); err != nil {
		abortWithError(ctx, http.StatusInternalServerError, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Indexer registered successfully"})
}

func (r *RegistryController) StageDocuments(ctx *gin.Context) {
	var request registry.StageDocumentsRequest
	if !bindJSON(ctx, &request) {
		return
	}
	response, err := r.RegistryHandler.StageDocuments(ctx.Param("name"), &request)
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	ctx.JSON(http.StatusOK, response)
}
