package sqlfetch

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Latest(t *testing.T) {
	recorded := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	columns := []string{"lid_open", "temperature", "humidity", "weight", "battery", "recorded_at"}

	tests := []struct {
		name      string
		setup     func(mock sqlmock.Sqlmock)
		expectNil bool
		expectErr bool
		expectLid bool
	}{
		{
			name: "latest_row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM hive_readings")).
					WithArgs("hive-1").
					WillReturnRows(sqlmock.NewRows(columns).AddRow(true, 35.1, 60.0, nil, 3.9, recorded))
			},
			expectLid: true,
		},
		{
			name: "no_rows",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM hive_readings")).
					WithArgs("hive-1").
					WillReturnRows(sqlmock.NewRows(columns))
			},
			expectNil: true,
		},
		{
			name: "query_error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM hive_readings")).
					WithArgs("hive-1").
					WillReturnError(errors.New("connection reset"))
			},
			expectErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			test.setup(mock)

			got, err := NewFromDB(db).Latest(context.Background(), "hive-1")
			require.NoError(t, mock.ExpectationsWereMet())
			if test.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if test.expectNil {
				require.Nil(t, got)
				return
			}
			require.Equal(t, "hive-1", got.EntityID)
			require.Equal(t, test.expectLid, got.Hazard())
			require.Equal(t, recorded, got.Timestamp)
			require.Zero(t, got.Weight)
		})
	}
}
