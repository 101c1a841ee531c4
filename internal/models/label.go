package models

// OriginText is the literal stamped on cropped labels when
// TransformConfig.AddOriginText is set.
const OriginText = "Made In China"

// InputFile is one submitted file. ContentType is the type declared by the
// caller; an empty value means the bytes have to be sniffed.
type InputFile struct {
	Name        string
	ContentType string
	Bytes       []byte
}

// OutputFile is the re-encoded result for one successfully processed input.
type OutputFile struct {
	Name       string
	SourceName string
	Bytes      []byte
	PageCount  int
}

// TransformConfig is applied uniformly to every page of every file in a batch.
type TransformConfig struct {
	AddOriginText bool `json:"addOriginText"`
}

// Progress states.
const (
	StateProcessing = "processing"
	StateDone       = "done"
	StateCancelled  = "cancelled"
)

// BatchProgress is an immutable snapshot handed to progress observers.
type BatchProgress struct {
	State               string `json:"state"`
	CurrentFileName     string `json:"currentFileName"`
	CurrentFileProgress int    `json:"currentFileProgress"`
	FilesCompleted      int    `json:"filesCompleted"`
	FilesFailed         int    `json:"filesFailed"`
	TotalFiles          int    `json:"totalFiles"`
}

// FileFailure records why a single file produced no output.
type FileFailure struct {
	Name  string `json:"name" firestore:"name"`
	Kind  string `json:"kind" firestore:"kind"`
	Error string `json:"error" firestore:"error"`
}

// BatchReport summarizes a finished (or cancelled) batch run. Skipped lists
// outputs the sink already held, so nothing was written for them.
type BatchReport struct {
	TotalFiles int           `json:"totalFiles"`
	Outputs    []string      `json:"outputs"`
	Failures   []FileFailure `json:"failures,omitempty"`
	Rejected   []string      `json:"rejected,omitempty"`
	Skipped    []string      `json:"skipped,omitempty"`
	Cancelled  bool          `json:"cancelled,omitempty"`
}
