package as3client

import (
	"context"
	"net/url"

	"github.com/sapcc/f5agent/internal/as3"
	"github.com/sapcc/f5agent/internal/credentials"
)

// endpointClass separates declaration traffic from device-management
// traffic, which external processors never handle.
type endpointClass int

const (
	classDeclaration endpointClass = iota
	classManagement
)

// endpointStrategy resolves request URLs and adapts operations for the
// deployment topology. The direct strategy talks to the device for
// everything; the external strategy redirects declaration traffic to a
// separately hosted processor and re-expresses PATCH and DELETE as
// POST with an embedded action.
type endpointStrategy interface {
	// resolve builds the absolute URL for a path of the given class.
	resolve(path string, class endpointClass) string

	// reexpressVerbs reports whether PATCH and DELETE must be sent as
	// POST of an action declaration.
	reexpressVerbs() bool

	// prepareDeclaration stamps an outgoing declaration before sending.
	prepareDeclaration(ctx context.Context, decl *as3.Declaration) error
}

// directStrategy resolves every path against the device authority.
type directStrategy struct {
	device *url.URL
}

func (s *directStrategy) resolve(path string, _ endpointClass) string {
	u := url.URL{
		Scheme: s.device.Scheme,
		Host:   s.device.Host,
		Path:   path,
	}
	return u.String()
}

func (s *directStrategy) reexpressVerbs() bool { return false }

func (s *directStrategy) prepareDeclaration(_ context.Context, _ *as3.Declaration) error {
	return nil
}

// externalStrategy redirects declaration-class paths to the external
// processor's authority, keeping the path intact. Device-management
// paths stay on-device. Outgoing declarations are stamped with the
// device host and the active credentials so the processor can
// authenticate to the device on the caller's behalf.
type externalStrategy struct {
	device   *url.URL
	external *url.URL
	creds    credentials.Provider
}

func (s *externalStrategy) resolve(path string, class endpointClass) string {
	base := s.device
	if class == classDeclaration {
		base = s.external
	}
	u := url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   path,
	}
	return u.String()
}

func (s *externalStrategy) reexpressVerbs() bool { return true }

func (s *externalStrategy) prepareDeclaration(ctx context.Context, decl *as3.Declaration) error {
	decl.TargetHost = s.device.Hostname()
	return s.creds.Embed(ctx, decl)
}

// Ensure implementations satisfy the interface.
var (
	_ endpointStrategy = (*directStrategy)(nil)
	_ endpointStrategy = (*externalStrategy)(nil)
)
