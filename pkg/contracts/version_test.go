package contracts

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, DataFormatVersion, info.DataFormat)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Architecture)
}

func TestGetVersionString(t *testing.T) {
	s := GetVersionString()
	assert.Equal(t, "CLAMSer v"+Version, s)
}

func TestGetFullVersionString(t *testing.T) {
	s := GetFullVersionString()

	assert.True(t, strings.HasPrefix(s, GetVersionString()))
	assert.Contains(t, s, runtime.Version())
	assert.Contains(t, s, runtime.GOOS)
}
