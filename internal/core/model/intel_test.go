package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParametersPresence(t *testing.T) {
	var p Parameters
	require.NoError(t, json.Unmarshal([]byte(`{"threat_actors": [], "malware": [{"Name": "Ryuk"}]}`), &p))

	assert.NotNil(t, p.ThreatActors)
	assert.Empty(t, p.ThreatActors)
	assert.Nil(t, p.TTPs)
	assert.Nil(t, p.TargetedEntities)
	assert.False(t, p.Empty())
}

func TestNormalize(t *testing.T) {
	p := Parameters{
		ThreatActors: []string{" APT28 ", "apt28", "", "Fancy Bear"},
		TTPs: &TTPs{
			Tactics:    [][]string{{"Execution"}, {}, {"execution", "Discovery"}},
			Techniques: nil,
		},
		Malware: []Malware{{Name: "X-Agent"}, {Name: ""}, {Name: "x-agent"}},
	}

	n := p.Normalize()
	assert.Equal(t, []string{"APT28", "Fancy Bear"}, n.ThreatActors)
	assert.Equal(t, [][]string{{"Execution"}, {"Discovery"}}, n.TTPs.Tactics)
	assert.Nil(t, n.TTPs.Techniques)
	assert.Equal(t, []Malware{{Name: "X-Agent"}}, n.Malware)
	assert.Nil(t, n.IoCs)
	assert.Nil(t, n.TargetedEntities)
}

func TestEmpty(t *testing.T) {
	assert.True(t, Parameters{}.Empty())
	assert.True(t, Parameters{IoCs: &IoCs{}, TTPs: &TTPs{Tactics: [][]string{{" "}}}}.Empty())
	assert.False(t, Parameters{IoCs: &IoCs{Domains: []string{"bad.example.com"}}}.Empty())
}

func TestTTPsAcceptFlatLists(t *testing.T) {
	var p Parameters
	require.NoError(t, json.Unmarshal([]byte(`{"ttps": {"Tactics": ["Initial Access", ["Execution"]], "Techniques": "Phishing"}}`), &p))

	require.NotNil(t, p.TTPs)
	assert.Equal(t, [][]string{{"Initial Access"}, {"Execution"}}, p.TTPs.Tactics)
	assert.Equal(t, [][]string{{"Phishing"}}, p.TTPs.Techniques)

	var empty TTPs
	require.NoError(t, json.Unmarshal([]byte(`{"Tactics": null}`), &empty))
	assert.Nil(t, empty.Tactics)
	assert.Nil(t, empty.Techniques)

	assert.Error(t, json.Unmarshal([]byte(`{"Tactics": [{"name": "Execution"}]}`), &empty))
}
