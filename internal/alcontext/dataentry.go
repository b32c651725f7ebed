package alcontext

import (
	"fmt"
	"strings"

	"imascore/internal/alerrors"
	"imascore/internal/config"
	"imascore/internal/types"
	"imascore/internal/uri"
)

type options struct {
	env    config.Environment
	hasEnv bool
}

// Option configures DataEntryContext construction.
type Option func(*options)

// WithEnvironment resolves host affinity and legacy paths against env
// instead of the process environment.
func WithEnvironment(env config.Environment) Option {
	return func(o *options) {
		o.env = env
		o.hasEnv = true
	}
}

// DataEntryContext identifies one open database. It is immutable.
type DataEntryContext struct {
	uid     uint64
	uri     uri.URI
	backend types.BackendID
}

var _ Context = (*DataEntryContext)(nil)

// NewDataEntryContext parses raw and resolves its backend.
func NewDataEntryContext(raw string, opts ...Option) (*DataEntryContext, error) {
	u, err := uri.Parse(raw)
	if err != nil {
		return nil, alerrors.Errorf(alerrors.ContextErr, "Unable to parse the URI: %s", raw)
	}
	return NewDataEntryContextFromURI(u, opts...)
}

// NewDataEntryContextFromURI resolves the backend of an already parsed URI:
// allow-listed remote hosts are rewritten to their local backend, the
// backend kind is taken from the path token and, without a path or mapping
// argument, the path is built from the legacy user/database/version/pulse/run
// arguments.
func NewDataEntryContextFromURI(u uri.URI, opts ...Option) (*DataEntryContext, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasEnv {
		o.env = config.FromProcess()
	}

	u = checkURIHost(u, o.env)

	backend, err := backendFromURI(u)
	if err != nil {
		return nil, err
	}

	hasPath, hasMapping := u.Query.Has("path"), u.Query.Has("mapping")
	if !hasPath && !hasMapping {
		if u, err = uriFromLegacy(u, o.env); err != nil {
			return nil, err
		}
	}
	if hasPath && hasMapping {
		return nil, alerrors.New(alerrors.ContextErr, "URI cannot contain both path and mapping query arguments")
	}

	return &DataEntryContext{uid: nextUID(), uri: u, backend: backend}, nil
}

func pathToken(u uri.URI) string {
	return strings.TrimPrefix(u.Path, "/")
}

func checkURIHost(u uri.URI, env config.Environment) uri.URI {
	if pathToken(u) != "uda" {
		return u
	}
	backend, ok := u.Query.Get("backend")
	if !ok || !env.IsLocalHost(u.Authority.Host) {
		return u
	}
	q := u.Query.Clone()
	q.Remove("backend")
	return uri.URI{Scheme: "imas", Path: backend, Query: q, Fragment: u.Fragment}
}

func backendFromURI(u uri.URI) (types.BackendID, error) {
	switch tok := pathToken(u); {
	case tok == "mdsplus":
		return types.BackendMDSplus, nil
	case tok == "hdf5":
		return types.BackendHDF5, nil
	case tok == "ascii":
		return types.BackendASCII, nil
	case tok == "memory":
		return types.BackendMemory, nil
	case tok == "serialize":
		return types.BackendSerialize, nil
	case tok == "uda" || u.Authority.Host != "":
		return types.BackendUDA, nil
	}
	return types.BackendNone, alerrors.New(alerrors.ContextErr, "Unable to identify a backend from the URI")
}

func legacyArg(u uri.URI, key string) (string, error) {
	v, ok := u.Query.Get(key)
	if !ok {
		return "", alerrors.Errorf(alerrors.ContextErr,
			"'%s' is not specified in URI but it is required when path is not specified (legacy mode)", key)
	}
	return v, nil
}

func uriFromLegacy(u uri.URI, env config.Environment) (uri.URI, error) {
	user, err := legacyArg(u, "user")
	if err != nil {
		return u, err
	}
	database, err := legacyArg(u, "database")
	if err != nil {
		return u, err
	}
	version, err := legacyArg(u, "version")
	if err != nil {
		return u, err
	}

	pulse, hasPulse := u.Query.Get("pulse")
	shot, hasShot := u.Query.Get("shot")
	if hasPulse && hasShot {
		return u, alerrors.New(alerrors.ContextErr, "Can't provide both 'pulse and 'shot', use just 'pulse' instead")
	}
	if hasShot {
		pulse, hasPulse = shot, true
	}
	if !hasPulse {
		return u, alerrors.New(alerrors.ContextErr,
			"'pulse' is not specified in URI but it is required when path is not specified (legacy mode)")
	}
	run, err := legacyArg(u, "run")
	if err != nil {
		return u, err
	}

	var root string
	switch {
	case user == "public":
		if env.Home == "" {
			return u, alerrors.New(alerrors.BackendErr, "when user is 'public', IMAS_HOME environment variable should be set.")
		}
		root = env.Home + "/shared/imasdb"
	case strings.HasPrefix(user, "/"):
		root = user
	default:
		var home string
		if env.LookupHome != nil {
			home, err = env.LookupHome(user)
		}
		if env.LookupHome == nil || err != nil || home == "" {
			return u, alerrors.Errorf(alerrors.BackendErr, "Can't find or access %s user's data", user)
		}
		root = home + "/public/imasdb"
	}

	var q uri.Query
	q.Insert("path", strings.Join([]string{root, database, version, pulse, run}, "/"))
	return uri.URI{Scheme: u.Scheme, Authority: u.Authority, Path: u.Path, Query: q}, nil
}

func (c *DataEntryContext) isContext() {}

func (c *DataEntryContext) UID() uint64 { return c.uid }

func (c *DataEntryContext) Type() Type { return DataEntryType }

func (c *DataEntryContext) BackendID() types.BackendID { return c.backend }

// BackendName returns the name of the resolved backend kind.
func (c *DataEntryContext) BackendName() string { return c.backend.String() }

// URI returns a copy of the resolved URI.
func (c *DataEntryContext) URI() uri.URI {
	u := c.uri
	u.Query = c.uri.Query.Clone()
	return u
}

// Path returns the resolved path argument, empty when the entry is
// addressed through a mapping.
func (c *DataEntryContext) Path() string {
	p, _ := c.uri.Query.Get("path")
	return p
}

// Option returns a query argument of the resolved URI.
func (c *DataEntryContext) Option(key string) (string, bool) {
	return c.uri.Query.Get(key)
}

func (c *DataEntryContext) String() string {
	return uidLine(c.uid) + "uri \t\t\t = " + c.uri.String() + "\n"
}

// URIBackend returns the URI path token of a backend kind.
func URIBackend(id types.BackendID) (string, error) {
	switch id {
	case types.BackendMDSplus:
		return "mdsplus", nil
	case types.BackendHDF5:
		return "hdf5", nil
	case types.BackendASCII:
		return "ascii", nil
	case types.BackendMemory:
		return "memory", nil
	case types.BackendUDA:
		return "uda", nil
	}
	return "", alerrors.Errorf(alerrors.ContextErr, "no URI backend token for %s", id)
}

// BuildURIFromLegacyParameters assembles a legacy URI. Only the first
// character of version is used, the major version.
func BuildURIFromLegacyParameters(backend types.BackendID, pulse, run int, user, tokamak, version, opts string) (string, error) {
	tok, err := URIBackend(backend)
	if err != nil {
		return "", err
	}
	major := version
	if len(major) > 1 {
		major = major[:1]
	}
	s := fmt.Sprintf("imas:%s?user=%s;pulse=%d;run=%d;database=%s;version=%s", tok, user, pulse, run, tokamak, major)
	if opts != "" {
		s += ";" + opts
	}
	return s, nil
}
