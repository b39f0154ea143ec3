package repository

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/imroc/req"

	"github.com/appforge/appforge-go/internal/cli/entity"
	"github.com/appforge/appforge-go/internal/cli/usecase"
)

// ForgeAPI talks to the forge server REST surface.
type ForgeAPI struct {
	Address string
	client  *req.Req
}

func NewForgeAPI(address string) *ForgeAPI {
	client := req.New()
	client.SetFlags(req.LrespBody)
	return &ForgeAPI{Address: address, client: client}
}

func (a *ForgeAPI) GetVersion(ctx context.Context) (entity.VersionResponse, error) {
	version := entity.VersionResponse{}
	result, err := a.client.Get(a.Address+"/api/v1/version", ctx)
	if err != nil {
		return version, err
	}
	err = checkStatus(result)
	if err != nil {
		return version, err
	}
	err = result.ToJSON(&version)
	return version, err
}

func (a *ForgeAPI) UploadProject(ctx context.Context, blobPath string, onProgress usecase.ProgressFunc) (entity.UploadResponse, error) {
	upload := entity.UploadResponse{}

	file, err := os.Open(blobPath)
	if err != nil {
		return upload, err
	}

	params := []interface{}{
		ctx,
		req.FileUpload{
			FileName:  filepath.Base(blobPath),
			FieldName: "blob",
			File:      file,
		},
	}
	if onProgress != nil {
		params = append(params, req.UploadProgress(func(current, total int64) {
			onProgress(current, total)
		}))
	}

	result, err := a.client.Post(a.Address+"/api/v1/upload", params...)
	if err != nil {
		return upload, err
	}
	err = checkStatus(result)
	if err != nil {
		return upload, err
	}
	err = result.ToJSON(&upload)
	return upload, err
}

func (a *ForgeAPI) StartOperation(ctx context.Context, request entity.OperationRequest) (entity.StartResponse, error) {
	response := entity.StartResponse{}
	header := req.Header{"Accept": "application/json"}

	result, err := a.client.Post(a.Address+"/api/v1/operations", ctx, header, req.BodyJSON(&request))
	if err != nil {
		return response, err
	}
	err = checkStatus(result)
	if err != nil {
		return response, err
	}
	err = result.ToJSON(&response)
	return response, err
}

func (a *ForgeAPI) GetOperationState(ctx context.Context, buildID string) (entity.OperationState, error) {
	state := entity.OperationState{}
	param := req.Param{"uuid": buildID}

	result, err := a.client.Get(a.Address+"/api/v1/status", ctx, param)
	if err != nil {
		return state, err
	}
	err = checkStatus(result)
	if err != nil {
		return state, err
	}
	err = result.ToJSON(&state)
	return state, err
}

func checkStatus(result *req.Resp) error {
	response := result.Response()
	if response == nil {
		return nil
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("forge server returned %s", response.Status)
	}
	return nil
}
