package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func TestEnvFileStore_Read(t *testing.T) {
	path := writeEnv(t, "TELEGRAM_API_ID=123\nGROUP_IDS=-1002287233685, -4778709440\n")
	store := NewEnvFileStore(path, "")

	groups, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-1002287233685, -4778709440)))
}

func TestEnvFileStore_ReadFallsBack(t *testing.T) {
	ctx := context.Background()

	missingKey := NewEnvFileStore(writeEnv(t, "TELEGRAM_API_ID=123\n"), "-5")
	groups, err := missingKey.Read(ctx)
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-5)))

	missingFile := NewEnvFileStore(filepath.Join(t.TempDir(), "absent.env"), "-6,-7")
	groups, err = missingFile.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, groups.Len())
}

func TestEnvFileStore_ReadInvalid(t *testing.T) {
	store := NewEnvFileStore(writeEnv(t, "GROUP_IDS=-1,abc\n"), "")

	_, err := store.Read(context.Background())
	assert.Error(t, err)
}

func TestEnvFileStore_WritePreservesOtherLines(t *testing.T) {
	original := "# Telegram\nTELEGRAM_API_ID=123\nTELEGRAM_API_HASH=\"abc\"\n\nGROUP_IDS=-1\nTARGET_BOT_USERNAME=TheXThoth_bot\n"
	path := writeEnv(t, original)
	store := NewEnvFileStore(path, "")

	require.NoError(t, store.Write(context.Background(), domain.NewGroupSet(-3, -1, -2)))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Telegram\nTELEGRAM_API_ID=123\nTELEGRAM_API_HASH=\"abc\"\n\nGROUP_IDS=-3,-2,-1\nTARGET_BOT_USERNAME=TheXThoth_bot\n", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	groups, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, groups.Equal(domain.NewGroupSet(-1, -2, -3)))
}

func TestEnvFileStore_WriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".env")
	store := NewEnvFileStore(path, "")

	require.NoError(t, store.Write(context.Background(), domain.NewGroupSet(-9)))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "GROUP_IDS=-9\n", string(content))
}

func TestEnvFileStore_WriteEmptySet(t *testing.T) {
	path := writeEnv(t, "GROUP_IDS=-1\n")
	store := NewEnvFileStore(path, "-1")

	require.NoError(t, store.Write(context.Background(), domain.NewGroupSet()))

	groups, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, groups.Len())
}

func TestReplaceGroupLine(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "replace in place",
			content: "A=1\nGROUP_IDS=-1\nB=2\n",
			want:    "A=1\nGROUP_IDS=-5,-4\nB=2\n",
		},
		{
			name:    "export prefix kept",
			content: "export GROUP_IDS=-1\n",
			want:    "export GROUP_IDS=-5,-4\n",
		},
		{
			name:    "append when absent",
			content: "A=1\n",
			want:    "A=1\nGROUP_IDS=-5,-4\n",
		},
		{
			name:    "append without trailing newline",
			content: "A=1",
			want:    "A=1\nGROUP_IDS=-5,-4\n",
		},
		{
			name:    "commented line ignored",
			content: "# GROUP_IDS=-7\nGROUP_IDS=-1\n",
			want:    "# GROUP_IDS=-7\nGROUP_IDS=-5,-4\n",
		},
		{
			name:    "similar key untouched",
			content: "GROUP_IDS_OLD=-1\n",
			want:    "GROUP_IDS_OLD=-1\nGROUP_IDS=-5,-4\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := replaceGroupLine([]byte(tt.content), "-5,-4")
			assert.Equal(t, tt.want, string(got))
		})
	}
}
