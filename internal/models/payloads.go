package models

// These structs define the JSON payloads for the HTTP entry points.

// CropPrefixRequest is the input for the prefix crop function.
type CropPrefixRequest struct {
	Bucket        string `json:"bucket"`
	Prefix        string `json:"prefix"`
	AddOriginText *bool  `json:"addOriginText,omitempty"`
}

// CropPrefixResponse is the output of the prefix crop function.
type CropPrefixResponse struct {
	Status  string       `json:"status"`
	BatchID string       `json:"batchId,omitempty"`
	Report  *BatchReport `json:"report,omitempty"`
}
