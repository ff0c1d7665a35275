package serialization

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgeflux/influxline/models"
)

func multiStatementResponse() *models.Response {
	return &models.Response{Results: []models.Result{
		{
			StatementID: 0,
			Series: []models.Row{
				{
					Name:    "cpu",
					Tags:    map[string]string{"host": "a"},
					Columns: []string{"time", "value"},
					Values: [][]interface{}{
						{int64(100), 1.0},
						{int64(200), 2.0},
					},
				},
				{
					Name:    "cpu",
					Tags:    map[string]string{"host": "b"},
					Columns: []string{"time", "value"},
					Values: [][]interface{}{
						{int64(300), 3.0},
					},
				},
			},
		},
		{StatementID: 1}, // empty statement contributes nothing
		{
			StatementID: 2,
			Series: []models.Row{{
				Name:    "mem",
				Columns: []string{"time", "used"},
				Values: [][]interface{}{
					{int64(400), int64(512)},
				},
			}},
		},
	}}
}

func TestPointIteratorFlattensEverything(t *testing.T) {
	it := Points(multiStatementResponse())

	type seen struct {
		name string
		stmt int
		time interface{}
	}
	var got []seen
	for it.Next() {
		got = append(got, seen{
			name: it.Meta().Name,
			stmt: it.Meta().StatementID,
			time: it.Values()[0],
		})
	}
	require.NoError(t, it.Err())
	require.Equal(t, []seen{
		{"cpu", 0, int64(100)},
		{"cpu", 0, int64(200)},
		{"cpu", 0, int64(300)},
		{"mem", 2, int64(400)},
	}, got)

	// exhausted iterators stay exhausted
	require.False(t, it.Next())
}

func TestPointIteratorMeta(t *testing.T) {
	it := Points(multiStatementResponse())
	require.True(t, it.Next())
	m := it.Meta()
	require.Equal(t, "cpu", m.Name)
	require.Equal(t, []string{"time", "value"}, m.Columns)
	require.Equal(t, map[string]string{"host": "a"}, m.Tags)
	require.Equal(t, 0, m.StatementID)
}

func TestPointIteratorEmptyResponse(t *testing.T) {
	it := Points(&models.Response{})
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestPointIteratorEach(t *testing.T) {
	count := 0
	err := Points(multiStatementResponse()).Each(func(values []interface{}, meta Meta) error {
		count++
		require.Len(t, values, 2)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestStreamPointsChunks(t *testing.T) {
	chunks := []*models.Response{
		{Results: []models.Result{{
			Series: []models.Row{{
				Name:    "cpu",
				Columns: []string{"time", "v"},
				Values:  [][]interface{}{{int64(1), 1.0}, {int64(2), 2.0}},
			}},
		}}},
		{Results: []models.Result{{
			Series: []models.Row{{
				Name:    "cpu",
				Columns: []string{"time", "v"},
				Values:  [][]interface{}{{int64(3), 3.0}},
			}},
		}}},
	}
	i := 0
	it := StreamPoints(func() (*models.Response, error) {
		if i >= len(chunks) {
			return nil, io.EOF
		}
		c := chunks[i]
		i++
		return c, nil
	})

	var times []interface{}
	for it.Next() {
		times = append(times, it.Values()[0])
	}
	require.NoError(t, it.Err())
	require.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, times)
}

func TestStreamPointsChunkError(t *testing.T) {
	delivered := false
	it := StreamPoints(func() (*models.Response, error) {
		if delivered {
			return &models.Response{Results: []models.Result{{
				StatementID: 0,
				Err:         "engine: error",
			}}}, nil
		}
		delivered = true
		return &models.Response{Results: []models.Result{{
			Series: []models.Row{{
				Name:    "cpu",
				Columns: []string{"time", "v"},
				Values:  [][]interface{}{{int64(1), 1.0}},
			}},
		}}}, nil
	})

	require.True(t, it.Next())
	require.False(t, it.Next())
	var qerr *QueryError
	require.ErrorAs(t, it.Err(), &qerr)
	require.Contains(t, qerr.Error(), "engine: error")
}
