package sheets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"

	"fixedspend/internal/remote"
)

func TestListExpensesOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.Contains(r.URL.Path, "/spreadsheets/sid/values/"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"range":"Expenses!A1:F4","majorDimension":"ROWS","values":[
			["id","user_id","service_name","amount","payment_day","category"],
			["e1","u1","Gym","50000","25",""],
			["e2","u2","Hidden","1","1",""],
			["e3","u1","Netflix","15000","5","OTT"]
		]}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{SpreadsheetID: "sid"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	sess := remote.Session{Token: &oauth2.Token{AccessToken: "t"}, User: remote.User{ID: "u1"}}
	rows, err := c.ListExpenses(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Netflix", rows[0].ServiceName)
	assert.Equal(t, "Gym", rows[1].ServiceName)

	_, err = c.ListExpenses(context.Background(), remote.Session{})
	assert.ErrorIs(t, err, remote.ErrNoSession)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), Config{}, nil)
	assert.Error(t, err)
}
