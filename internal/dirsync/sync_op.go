package dirsync

type OpType string

const (
	OpCreateDirectory OpType = "CreateDirectory"
	OpUpload          OpType = "Upload"
	OpDeleteRemote    OpType = "DeleteRemote"
	OpSkipped         OpType = "Skipped"
	OpError           OpType = "Error"
)
