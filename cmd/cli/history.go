package main

import (
	"github.com/appforge/appforge-go/internal/cli/usecase"
	"github.com/appforge/appforge-go/internal/storage"
)

// historyStore adapts the SQLite operation store to the usecase port.
type historyStore struct {
	store *storage.OperationStore
}

func (h historyStore) RecordOperation(op usecase.OperationRecord) error {
	return h.store.RecordOperation(storage.OperationInfo{
		BuildID:     op.BuildID,
		Operation:   op.Operation,
		Platform:    op.Platform,
		ProjectName: op.ProjectName,
		SubmittedAt: op.SubmittedAt,
		State:       op.State,
		ResultURL:   op.ResultURL,
		LogsURL:     op.LogsURL,
		Artifacts:   op.Artifacts,
		Error:       op.Error,
	})
}

func (h historyStore) UpdateOperationState(buildID, state, errText string) error {
	return h.store.UpdateOperationState(buildID, state, errText)
}

func (h historyStore) GetOperation(buildID string) (usecase.OperationRecord, error) {
	info, err := h.store.GetOperation(buildID)
	if err != nil {
		return usecase.OperationRecord{}, err
	}
	return toRecord(info), nil
}

func (h historyStore) ListOperations(limit int) ([]usecase.OperationRecord, error) {
	infos, err := h.store.ListOperations(limit)
	if err != nil {
		return nil, err
	}
	records := make([]usecase.OperationRecord, 0, len(infos))
	for _, info := range infos {
		records = append(records, toRecord(info))
	}
	return records, nil
}

func toRecord(info storage.OperationInfo) usecase.OperationRecord {
	return usecase.OperationRecord{
		BuildID:     info.BuildID,
		Operation:   info.Operation,
		Platform:    info.Platform,
		ProjectName: info.ProjectName,
		SubmittedAt: info.SubmittedAt,
		State:       info.State,
		ResultURL:   info.ResultURL,
		LogsURL:     info.LogsURL,
		Artifacts:   info.Artifacts,
		Error:       info.Error,
	}
}
