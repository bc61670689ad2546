package ioc

import (
	"testing"

	"github.com/agenthands/ctigraph/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	text := `The implant beaconed to 185.220.101.4 and 45.9.148[.]108 over HTTPS.
Operators registered update-check[.]net and cdn.Evil-Sync.org, then dropped loader.exe.
Internal hosts 10.0.0.5, 192.168.1.20 and 127.0.0.1 were also seen, plus 999.1.1.1.
Reference: https://attack.mitre.org/techniques/T1071/ and docs.microsoft.com.
Again: 185.220.101.4`

	got := Extract(text)
	require.NotNil(t, got)
	assert.Equal(t, []string{"185.220.101.4", "45.9.148.108"}, got.IPv4s)
	assert.Equal(t, []string{"cdn.evil-sync.org", "update-check.net"}, got.Domains)
}

func TestExtractRejectsNonDomains(t *testing.T) {
	text := `They staged the implant.Then it beaconed home. The panel is built on ASP.NET and
ships a config.Json next to it. Details are in the report.In the end, traffic went to bad[.]xyz
and fallback.invalidtld.`

	got := Extract(text)
	require.NotNil(t, got)
	assert.Equal(t, []string{"bad.xyz"}, got.Domains)
}

func TestExtractNothing(t *testing.T) {
	assert.Nil(t, Extract("No indicators were published for this campaign."))
	assert.Nil(t, Extract("Gateway 192.168.0.1 and host 172.16.4.2 only."))
}

func TestMerge(t *testing.T) {
	base := &model.IoCs{IPv4s: []string{"1.2.3.4"}}
	extra := &model.IoCs{IPv4s: []string{"1.2.3.4", "5.6.7.8"}, Domains: []string{"bad.net"}}

	got := Merge(base, extra)
	assert.Equal(t, []string{"1.2.3.4", "5.6.7.8"}, got.IPv4s)
	assert.Equal(t, []string{"bad.net"}, got.Domains)

	assert.Equal(t, base, Merge(base, nil))
	assert.Equal(t, extra, Merge(nil, extra))
	assert.Nil(t, Merge(nil, nil))
}
