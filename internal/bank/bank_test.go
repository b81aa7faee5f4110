package bank

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const associateBank = `[
  {
    "question_id": "Q1",
    "domain": "Lakehouse",
    "difficulty": "associate",
    "question_text": "Which layer stores raw ingested data?",
    "choices": {"A": "Bronze", "B": "Silver", "C": "Gold"},
    "correct_answer": "A",
    "explanation": {
      "correct": "Bronze tables hold raw data.",
      "options": {"A": "Right.", "B": "Cleansed.", "C": "Aggregated."}
    }
  },
  {
    "question_id": "Q2",
    "domain": "Delta Lake",
    "difficulty": "associate",
    "question_text": "Which command compacts small files?",
    "choices": {"A": "VACUUM", "B": "OPTIMIZE"},
    "correct_answer": "B",
    "explanation": {
      "correct": "OPTIMIZE rewrites small files.",
      "options": {"A": "Removes old files.", "B": "Right."}
    }
  }
]`

const sharedBank = `[
  {
    "question_id": "P1",
    "domain": "Streaming",
    "difficulty": "professional",
    "question_text": "Which API handles late data?",
    "choices": {"A": "Watermarking", "B": "Checkpointing"},
    "correct_answer": "A",
    "explanation": {"correct": "Watermarks bound lateness.", "options": {"A": "Right.", "B": "Recovery."}}
  },
  {
    "question_id": "A1",
    "domain": "Lakehouse",
    "difficulty": "associate",
    "question_text": "What format backs Delta tables?",
    "choices": {"A": "Parquet", "B": "Avro"},
    "correct_answer": "A",
    "explanation": {"correct": "Delta stores data as Parquet.", "options": {"A": "Right.", "B": "Row format."}}
  }
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadPerCodeFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "question_bank_associate.json"), associateBank)

	loader := NewLoader(dir, "", map[string]string{"associate": "Associate"}, zerolog.Nop())
	questions, err := loader.Load("associate")
	require.NoError(t, err)

	assert.Len(t, questions, 2)
	assert.Equal(t, "A", questions["Q1"].CorrectAnswer)
	assert.Equal(t, "OPTIMIZE", questions["Q2"].Choices["B"])
}

func TestLoadSharedFileFiltersByDifficulty(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "question_bank.json")
	writeFile(t, shared, sharedBank)

	loader := NewLoader(dir, shared, map[string]string{
		"associate":    "Associate",
		"professional": "Professional",
	}, zerolog.Nop())

	associate, err := loader.Load("associate")
	require.NoError(t, err)
	assert.Len(t, associate, 1)
	assert.Contains(t, associate, "A1")

	professional, err := loader.Load("professional")
	require.NoError(t, err)
	assert.Len(t, professional, 1)
	assert.Contains(t, professional, "P1")
}

func TestLoadPerCodeFileWinsOverShared(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "question_bank.json")
	writeFile(t, shared, sharedBank)
	writeFile(t, filepath.Join(dir, "question_bank_associate.json"), associateBank)

	loader := NewLoader(dir, shared, map[string]string{"associate": "Associate"}, zerolog.Nop())
	questions, err := loader.Load("associate")
	require.NoError(t, err)

	// The dedicated file is used, not the shared one's filtered view.
	assert.Len(t, questions, 2)
	assert.Contains(t, questions, "Q1")
	assert.NotContains(t, questions, "A1")
}

func TestLoadMissingBank(t *testing.T) {
	loader := NewLoader(t.TempDir(), "", map[string]string{"associate": "Associate"}, zerolog.Nop())
	_, err := loader.Load("associate")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMalformedBank(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "question_bank_associate.json"), `{"not": "an array"}`)

	loader := NewLoader(dir, "", map[string]string{"associate": "Associate"}, zerolog.Nop())
	_, err := loader.Load("associate")
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoadInvalidRecord(t *testing.T) {
	dir := t.TempDir()
	// correct_answer points at a choice that does not exist.
	writeFile(t, filepath.Join(dir, "question_bank_associate.json"), `[
	  {
	    "question_id": "Q1",
	    "difficulty": "associate",
	    "question_text": "Broken question",
	    "choices": {"A": "Only option"},
	    "correct_answer": "Z",
	    "explanation": {"correct": "n/a", "options": {}}
	  }
	]`)

	loader := NewLoader(dir, "", map[string]string{"associate": "Associate"}, zerolog.Nop())
	_, err := loader.Load("associate")
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoadDuplicateIDKeepsLast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "question_bank_associate.json"), `[
	  {
	    "question_id": "Q1",
	    "difficulty": "associate",
	    "question_text": "First version",
	    "choices": {"A": "One", "B": "Two"},
	    "correct_answer": "A",
	    "explanation": {"correct": "x", "options": {"A": "x", "B": "x"}}
	  },
	  {
	    "question_id": "Q1",
	    "difficulty": "associate",
	    "question_text": "Second version",
	    "choices": {"A": "One", "B": "Two"},
	    "correct_answer": "B",
	    "explanation": {"correct": "x", "options": {"A": "x", "B": "x"}}
	  }
	]`)

	loader := NewLoader(dir, "", map[string]string{"associate": "Associate"}, zerolog.Nop())
	questions, err := loader.Load("associate")
	require.NoError(t, err)

	assert.Len(t, questions, 1)
	assert.Equal(t, "Second version", questions["Q1"].QuestionText)
	assert.Equal(t, "B", questions["Q1"].CorrectAnswer)
}

func TestLoadMemoizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "question_bank_associate.json")
	writeFile(t, path, associateBank)

	loader := NewLoader(dir, "", map[string]string{"associate": "Associate"}, zerolog.Nop())
	first, err := loader.Load("associate")
	require.NoError(t, err)

	// Deleting the backing file has no effect on subsequent loads.
	require.NoError(t, os.Remove(path))
	second, err := loader.Load("associate")
	require.NoError(t, err)
	assert.Len(t, second, len(first))
}

func TestCatalogListsBrokenBanksWithZeroCount(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "question_bank_associate.json"), associateBank)

	loader := NewLoader(dir, "", map[string]string{
		"associate": "Associate",
		"missing":   "Missing Exam",
	}, zerolog.Nop())

	infos := loader.Catalog()
	require.Len(t, infos, 2)
	assert.Equal(t, "associate", infos[0].ExamCode)
	assert.Equal(t, 2, infos[0].QuestionCount)
	assert.Equal(t, "missing", infos[1].ExamCode)
	assert.Equal(t, 0, infos[1].QuestionCount)
}

func TestLabelFallsBackToCode(t *testing.T) {
	loader := NewLoader(t.TempDir(), "", map[string]string{"associate": "Associate"}, zerolog.Nop())
	assert.Equal(t, "Associate", loader.Label("associate"))
	assert.Equal(t, "unknown", loader.Label("unknown"))
}
