package classtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/classver/internal/model"
)

func mustID(t *testing.T, root, id string) model.CategoryID {
	t.Helper()
	c, err := model.NewCategoryID(root, id)
	require.NoError(t, err)
	return c
}

func en(text string) []model.Label {
	return []model.Label{{Lang: "en", Text: text}}
}

// colorsForest builds colors{red, blue{navy}}.
func colorsForest(t *testing.T) *Forest {
	t.Helper()
	f := New()
	_, err := f.AddClassification("colors", en("Colors"))
	require.NoError(t, err)
	root := mustID(t, "colors", "")
	_, err = f.AddCategory(root, "red", en("Red"), -1)
	require.NoError(t, err)
	_, err = f.AddCategory(root, "blue", en("Blue"), -1)
	require.NoError(t, err)
	_, err = f.AddCategory(mustID(t, "colors", "blue"), "navy", en("Navy"), -1)
	require.NoError(t, err)
	return f
}
