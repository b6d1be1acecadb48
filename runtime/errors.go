package runtime

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRuntime is returned by Global when no backend has been installed.
	ErrNoRuntime = errors.New("no device runtime installed")
	// ErrSubmission is the kind of every failed queue submission.
	ErrSubmission = errors.New("kernel submission failed")
)

// Status is the numeric code a queue returns for a submission.
type Status int32

// Codes follow the OpenCL numbering so logs read the same across backends.
const (
	Success               Status = 0
	DeviceNotAvailable    Status = -2
	OutOfResources        Status = -5
	OutOfHostMemory       Status = -6
	InvalidValue          Status = -30
	InvalidCommandQueue   Status = -36
	InvalidKernel         Status = -48
	InvalidKernelArgs     Status = -52
	InvalidWorkDimension  Status = -53
	InvalidWorkGroupSize  Status = -54
	InvalidWorkItemSize   Status = -55
	InvalidGlobalOffset   Status = -56
	InvalidEventWaitList  Status = -57
	InvalidOperation      Status = -59
	InvalidGlobalWorkSize Status = -63
)

var statusNames = map[Status]string{
	Success:               "CL_SUCCESS",
	DeviceNotAvailable:    "CL_DEVICE_NOT_AVAILABLE",
	OutOfResources:        "CL_OUT_OF_RESOURCES",
	OutOfHostMemory:       "CL_OUT_OF_HOST_MEMORY",
	InvalidValue:          "CL_INVALID_VALUE",
	InvalidCommandQueue:   "CL_INVALID_COMMAND_QUEUE",
	InvalidKernel:         "CL_INVALID_KERNEL",
	InvalidKernelArgs:     "CL_INVALID_KERNEL_ARGS",
	InvalidWorkDimension:  "CL_INVALID_WORK_DIMENSION",
	InvalidWorkGroupSize:  "CL_INVALID_WORK_GROUP_SIZE",
	InvalidWorkItemSize:   "CL_INVALID_WORK_ITEM_SIZE",
	InvalidGlobalOffset:   "CL_INVALID_GLOBAL_OFFSET",
	InvalidEventWaitList:  "CL_INVALID_EVENT_WAIT_LIST",
	InvalidOperation:      "CL_INVALID_OPERATION",
	InvalidGlobalWorkSize: "CL_INVALID_GLOBAL_WORK_SIZE",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// SubmissionError reports a non-success enqueue.
type SubmissionError struct {
	Code   Status
	Kernel string
	Offset []uint32
	Global []uint32
	Local  []uint32
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("enqueue %s offset=%v global=%v local=%v: error code %d (%s)",
		e.Kernel, e.Offset, e.Global, e.Local, int32(e.Code), e.Code)
}

// Unwrap lets callers match with errors.Is(err, ErrSubmission).
func (e *SubmissionError) Unwrap() error { return ErrSubmission }
