package idgen

// Privileges enforced at the API boundary before requests reach the
// generation service.
const (
	PrivManageSources   = "idgen:manage-identifier-sources"
	PrivGenerateBatch   = "idgen:generate-batch-of-identifiers"
	PrivUploadBatch     = "idgen:upload-batch-of-identifiers"
	PrivManageAutoGen   = "idgen:manage-autogeneration-options"
	PrivViewLogEntries  = "idgen:view-log-entries"
	PrivEditIdentifiers = "idgen:edit-identifiers"
)
