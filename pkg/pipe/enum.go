package pipe

import (
	"context"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// Well-known named pipes
const (
	PipeSrvsvc   = "srvsvc"   // Server Service
	PipeWkssvc   = "wkssvc"   // Workstation Service
	PipeLsarpc   = "lsarpc"   // LSA Remote
	PipeSamr     = "samr"     // SAM Remote
	PipeNetlogon = "netlogon" // Netlogon
	PipeSpoolss  = "spoolss"  // Print Spooler
	PipeWinreg   = "winreg"   // Remote Registry
)

// CommonPipes returns the pipes Probe checks by default.
func CommonPipes() []string {
	return []string{
		PipeSrvsvc,
		PipeWkssvc,
		PipeLsarpc,
		PipeSamr,
		PipeNetlogon,
		PipeSpoolss,
		PipeWinreg,
	}
}

// Availability of a probed pipe
const (
	Available    = "available"
	AccessDenied = "access_denied"
	NotFound     = "not_found"
	Failed       = "error"
)

// Status is the result of probing one pipe.
type Status struct {
	Name   string
	Status string
	Error  error
}

// Probe opens and closes a pipe to see whether it can be used.
func Probe(ctx context.Context, sess *smb.Session, name string) Status {
	p, err := Open(ctx, sess, name)
	if err != nil {
		st := Status{Name: name, Status: Failed, Error: err}
		switch {
		case smb.IsStatus(err, types.StatusAccessDenied):
			st.Status = AccessDenied
		case smb.IsNotFound(err), smb.IsStatus(err, types.StatusPipeNotAvailable):
			st.Status = NotFound
		}
		return st
	}
	if err := p.Close(ctx); err != nil {
		log.Debugf("Closing probe of %s: %v\n", name, err)
	}
	return Status{Name: name, Status: Available}
}

// ProbeCommon probes every pipe in CommonPipes.
func ProbeCommon(ctx context.Context, sess *smb.Session) []Status {
	var out []Status
	for _, name := range CommonPipes() {
		out = append(out, Probe(ctx, sess, name))
	}
	return out
}
