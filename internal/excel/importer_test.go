package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingobot/pkg/models"
)

type fakeWordWriter struct {
	existing map[string]bool // "word|lesson"
	upserts  []models.VocabWord
}

func (f *fakeWordWriter) Upsert(ctx context.Context, word *models.VocabWord) (bool, error) {
	f.upserts = append(f.upserts, *word)
	key := fmt.Sprintf("%s|%d", word.Word, word.Lesson)
	if f.existing[key] {
		return false, nil
	}
	if f.existing == nil {
		f.existing = make(map[string]bool)
	}
	f.existing[key] = true
	return true, nil
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportFromCSV(t *testing.T) {
	csv := "word,meaning,lesson,part,grammar,frequency\n" +
		"hola,hello,1,interjection,,1\n" +
		"gato,cat,2,noun,masculine,2\n" +
		",missing word,1,,,\n" +
		"solo,,1,,,\n"

	writer := &fakeWordWriter{}
	imp := NewImporter(writer)

	config := DefaultImportConfig()
	config.FilePath = writeTempCSV(t, csv)

	result, err := imp.ImportWords(context.Background(), config)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalProcessed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Skipped, "rows without word or meaning are skipped")
	assert.Empty(t, result.Errors)

	require.Len(t, writer.upserts, 2)
	assert.Equal(t, "hola", writer.upserts[0].Word)
	assert.Equal(t, 1, writer.upserts[0].Lesson)
	assert.Equal(t, 1, writer.upserts[0].FrequencyTier)
	assert.Equal(t, "gato", writer.upserts[1].Word)
	assert.Equal(t, "masculine", writer.upserts[1].Grammar)
	assert.Equal(t, 2, writer.upserts[1].FrequencyTier)
}

func TestImportFrequencyTierFallsBackToZero(t *testing.T) {
	csv := "word,meaning,lesson,part,grammar,frequency\n" +
		"hola,hello,1,,,\n" +
		"gato,cat,1,,,common\n" +
		"sol,sun,1,,,-3\n"

	writer := &fakeWordWriter{}
	imp := NewImporter(writer)
	config := DefaultImportConfig()
	config.FilePath = writeTempCSV(t, csv)

	result, err := imp.ImportWords(context.Background(), config)
	require.NoError(t, err)
	assert.Empty(t, result.Errors, "bad tiers degrade, they do not fail the row")

	require.Len(t, writer.upserts, 3)
	for _, w := range writer.upserts {
		assert.Equal(t, 0, w.FrequencyTier, "word %s", w.Word)
	}
}

func TestImportCountsUpdates(t *testing.T) {
	csv := "word,meaning,lesson\n" +
		"hola,hello,1\n" +
		"hola,hi there,1\n"

	imp := NewImporter(&fakeWordWriter{})
	config := DefaultImportConfig()
	config.FilePath = writeTempCSV(t, csv)

	result, err := imp.ImportWords(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
}

func TestImportRejectsBadLessonNumber(t *testing.T) {
	csv := "word,meaning,lesson\n" +
		"hola,hello,zero\n"

	imp := NewImporter(&fakeWordWriter{})
	config := DefaultImportConfig()
	config.FilePath = writeTempCSV(t, csv)

	result, err := imp.ImportWords(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid lesson number")
}

func TestImportDefaultsLessonToOne(t *testing.T) {
	csv := "word,meaning\n" +
		"hola,hello\n"

	writer := &fakeWordWriter{}
	imp := NewImporter(writer)
	config := DefaultImportConfig()
	config.FilePath = writeTempCSV(t, csv)

	_, err := imp.ImportWords(context.Background(), config)
	require.NoError(t, err)
	require.Len(t, writer.upserts, 1)
	assert.Equal(t, 1, writer.upserts[0].Lesson)
}
