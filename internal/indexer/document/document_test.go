package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

func TestParseField(t *testing.T) {
	for _, f := range AllFields {
		got, err := ParseField(strings.ToUpper(f.String()))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseField("abstract")
	assert.ErrorIs(t, err, apperrors.ErrUnknownField)
}

func TestFieldTextRoundTripRejectsUnknown(t *testing.T) {
	var f Field
	require.NoError(t, f.UnmarshalText([]byte("tags")))
	assert.Equal(t, Tags, f)
	assert.Error(t, f.UnmarshalText([]byte("nope")))
	_, err := NumFields.MarshalText()
	assert.Error(t, err)
}

func TestDefaultSchema(t *testing.T) {
	s := DefaultSchema()
	for _, f := range MetadataFields {
		assert.True(t, s.Positional(f), f.String())
		assert.True(t, s.Stored(f), f.String())
	}
	for _, f := range ContentFields {
		assert.False(t, s.Positional(f), f.String())
		assert.False(t, s.Stored(f), f.String())
	}
	assert.True(t, PositionalContentSchema().Positional(Entities))

	pos, stored := s.Mask()
	assert.Equal(t, s, SchemaFromMask(pos, stored))
}

func sampleRecord() Record {
	return Record{
		DatasetID:   " ds-1 ",
		Title:       "Public Debt Statistics",
		Description: "Quarterly figures",
		Tags:        "finance:public debt",
		Content: map[string]Content{
			SourceJena: {
				Entities: []string{"Debt Fund"},
				Classes:  []string{"Dataset", "Observation"},
			},
			SourceRDFLib: {
				Classes:  []string{"Dataset"},
				Literals: []string{"1999", "2000", "2001"},
			},
		},
	}
}

func TestBuilderBuild(t *testing.T) {
	b, err := NewBuilder(tokenizer.Default(), DefaultSchema(), DefaultBuildConfig())
	require.NoError(t, err)

	doc, err := b.Build(sampleRecord())
	require.NoError(t, err)

	assert.Equal(t, "ds-1", doc.ID)
	assert.Equal(t, []string{"public", "debt", "statistics"}, doc.Tokens[Title])
	assert.Equal(t, []string{"finance", "public", "debt"}, doc.Tokens[Tags])
	assert.Equal(t, []string{"finance", "public debt"}, doc.Stored[Tags])
	assert.Empty(t, doc.Tokens[Author])
	assert.Equal(t, []string{"debt", "fund"}, doc.Tokens[Entities])
	assert.Equal(t, []string{"dataset", "observation", "dataset"}, doc.Tokens[Classes])
	assert.Equal(t, []string{"1999", "2000", "2001"}, doc.Tokens[Literals])
	assert.Empty(t, doc.Stored[Entities])
	assert.Equal(t, 16, doc.TotalTokens())
}

func TestBuilderOptions(t *testing.T) {
	tests := []struct {
		name        string
		cfg         BuildConfig
		wantClasses []string
		wantLits    []string
	}{
		{
			name:        "dedup classes",
			cfg:         BuildConfig{IncludeClasses: true, DeduplicateClasses: true},
			wantClasses: []string{"dataset", "observation"},
			wantLits:    []string{"1999", "2000", "2001"},
		},
		{
			name:     "exclude classes",
			cfg:      BuildConfig{IncludeClasses: false},
			wantLits: []string{"1999", "2000", "2001"},
		},
		{
			name:        "truncate per source",
			cfg:         BuildConfig{IncludeClasses: true, MaxContentValues: 1},
			wantClasses: []string{"dataset", "dataset"},
			wantLits:    []string{"1999"},
		},
		{
			name:        "single source",
			cfg:         BuildConfig{IncludeClasses: true, ContentSources: []string{"RDFLib"}},
			wantClasses: []string{"dataset"},
			wantLits:    []string{"1999", "2000", "2001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBuilder(tokenizer.Default(), DefaultSchema(), tt.cfg)
			require.NoError(t, err)
			doc, err := b.Build(sampleRecord())
			require.NoError(t, err)
			assert.Equal(t, tt.wantClasses, doc.Tokens[Classes])
			assert.Equal(t, tt.wantLits, doc.Tokens[Literals])
		})
	}
}

func TestNewBuilderRejectsBadConfig(t *testing.T) {
	_, err := NewBuilder(tokenizer.Default(), DefaultSchema(), BuildConfig{ContentSources: []string{"sparql"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = NewBuilder(tokenizer.Default(), DefaultSchema(), BuildConfig{MaxContentValues: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = NewBuilder(nil, DefaultSchema(), DefaultBuildConfig())
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestBuildRejectsMissingID(t *testing.T) {
	b, err := NewBuilder(tokenizer.Default(), DefaultSchema(), DefaultBuildConfig())
	require.NoError(t, err)
	_, err = b.Build(Record{Title: "orphan"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestReadRecords(t *testing.T) {
	input := `{"dataset_id":"a","title":"First","tags":"x:y"}

{"dataset_id":"b","title":"Second","content":{"jena":{"entities":["e"]}}}
`
	var got []Record
	require.NoError(t, ReadRecords(strings.NewReader(input), func(r Record) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "x:y", got[0].Tags)
	assert.Equal(t, []string{"e"}, got[1].Content[SourceJena].Entities)

	err := ReadRecords(strings.NewReader("{\"dataset_id\":\"a\"}\n{broken\n"), func(Record) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
