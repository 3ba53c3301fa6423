package encoding

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/simdev/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []analysis.SimilarityResult {
	return []analysis.SimilarityResult{
		{
			DeveloperID: "b@x",
			Score:       0.5599397,
			Components: map[string]float64{
				analysis.SpaceLanguages:   1,
				analysis.SpaceIdentifiers: 0.11987940,
			},
			TopLanguages:       []analysis.Contributor{{Name: "python", Contribution: 1}},
			TopIdentifiers:     []analysis.Contributor{{Name: "foo", Contribution: 0.1198794}},
			TopRepositories:    []analysis.RepositoryActivity{{Repository: "r1", Files: 1}},
			SharedRepositories: []string{"r1"},
		},
		{
			DeveloperID: "c@x",
			Components:  map[string]float64{analysis.SpaceLanguages: 0, analysis.SpaceIdentifiers: 0},
		},
	}
}

func TestMarshal_Format(t *testing.T) {
	data, err := Marshal(FromResults(sampleResults()[:1]))
	require.NoError(t, err)

	expected := `[
    {
        "developer_id": "b@x",
        "score": 0.559940,
        "components": {
            "identifiers": 0.119879,
            "languages": 1.000000
        },
        "top_languages": [
            {
                "name": "python",
                "contribution": 1.000000
            }
        ],
        "top_identifiers": [
            {
                "name": "foo",
                "contribution": 0.119879
            }
        ],
        "top_repositories": [
            {
                "repository": "r1",
                "files": 1
            }
        ],
        "shared_repositories": [
            "r1"
        ]
    }
]
`
	assert.Equal(t, expected, string(data))
}

func TestMarshal_EmptyCollections(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	data, err = Marshal(FromResults(sampleResults()[1:]))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"top_languages": [],`)
	assert.Contains(t, string(data), `"shared_repositories": []`)
	assert.Contains(t, string(data), `"score": 0.000000`)
}

func TestWriteFile_RoundTripIsByteIdentical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "similar", "a@x.json")

	require.NoError(t, WriteFile(path, FromResults(sampleResults())))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b@x", records[0].DeveloperID)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))
	assert.Equal(t, string(first), buf.String())
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(bytes.NewBufferString(`[{"score": "high"}]`))
	assert.Error(t, err)
}

func TestExportPath(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "similar", "a@x.json"), ExportPath("results", "a@x"))
	assert.Equal(t, filepath.Join("out", "similar", "team_a@x.json"), ExportPath("out", "team/a@x"))
}
