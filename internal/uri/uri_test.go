package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	u, err := Parse("imas://uda.iter.org:56565/uda?path=/work/imas;backend=hdf5#pf_active:3/coil")
	require.NoError(t, err)

	assert.Equal(t, "imas", u.Scheme)
	assert.Equal(t, Authority{Host: "uda.iter.org", Port: "56565"}, u.Authority)
	assert.Equal(t, "/uda", u.Path)
	assert.Equal(t, "pf_active:3/coil", u.Fragment)
	assert.Equal(t, []string{"path", "backend"}, u.Query.Keys())

	v, ok := u.Query.Get("path")
	assert.True(t, ok)
	assert.Equal(t, "/work/imas", v)
}

func TestParseNoAuthority(t *testing.T) {
	u, err := Parse("imas:mdsplus?user=public&pulse=123;run=0")
	require.NoError(t, err)

	assert.True(t, u.Authority.Empty())
	assert.Equal(t, "mdsplus", u.Path)
	assert.Equal(t, 3, u.Query.Len())
	assert.Equal(t, "imas:mdsplus?user=public;pulse=123;run=0", u.String())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("no-scheme-here")
	assert.ErrorIs(t, err, ErrNoScheme)

	_, err = Parse("1imas:hdf5")
	assert.ErrorIs(t, err, ErrBadScheme)
}

func TestParseKeepsRawValues(t *testing.T) {
	for _, path := range []string{"/work/c++/db", "/data/run_100%", "/data/a%20b"} {
		u, err := Parse("imas:hdf5?path=" + path + ";backend=hdf5")
		require.NoError(t, err, path)
		v, ok := u.Query.Get("path")
		assert.True(t, ok, path)
		assert.Equal(t, path, v)
		assert.Equal(t, "imas:hdf5?path="+path+";backend=hdf5", u.String())
	}
}

func TestQueryEdit(t *testing.T) {
	var q Query
	q.Insert("a", "1")
	q.Insert("b", "2")
	q.Insert("a", "3")
	assert.Equal(t, "a=3;b=2", q.String())

	c := q.Clone()
	assert.True(t, q.Remove("a"))
	assert.False(t, q.Remove("a"))
	assert.Equal(t, "b=2", q.String())
	assert.Equal(t, "a=3;b=2", c.String())

	q.Insert("flag", "")
	assert.True(t, q.Has("flag"))
	assert.Equal(t, "b=2;flag", q.String())
}

func TestAuthorityString(t *testing.T) {
	u, err := Parse("imas://me@host/hdf5")
	require.NoError(t, err)
	assert.Equal(t, "me", u.Authority.UserInfo)
	assert.Equal(t, "host", u.Authority.Host)
	assert.Equal(t, "imas://me@host/hdf5", u.String())
}
