package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tktapps/arrivals-client/api"
	"github.com/tktapps/arrivals-client/transport"
)

func TestSendJSONDefaults(t *testing.T) {
	var gotContentType, gotBody, gotURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotURL = r.URL.String()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":null,"message":"ok"}`))
	}))
	defer server.Close()

	tr := transport.NewHTTPTransport(server.URL + "/")
	resp, err := tr.Send(context.Background(), &transport.Request{
		Method: http.MethodPost,
		Path:   "/attendance/mark-arrival",
		Body:   map[string]string{"vehicleNumber": "KA01AB1234"},
	})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, http.StatusCreated, resp.Status)
	require.Equal(t, "application/json", gotContentType)
	require.JSONEq(t, `{"vehicleNumber":"KA01AB1234"}`, gotBody)
	require.Equal(t, "/attendance/mark-arrival", gotURL)
}

func TestSendEncodesQuery(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"success":true,"data":[],"message":"ok"}`))
	}))
	defer server.Close()

	tr := transport.NewHTTPTransport(server.URL)
	_, err := tr.Send(context.Background(), &transport.Request{
		Method: http.MethodGet,
		Path:   "/reports/range",
		Query:  url.Values{"startDate": {"2025-01-01"}, "endDate": {"2025-01-31"}},
	})
	require.NoError(t, err)
	require.Equal(t, "2025-01-01", gotQuery.Get("startDate"))
	require.Equal(t, "2025-01-31", gotQuery.Get("endDate"))
}

func TestSendMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "Ravi", r.FormValue("ownerName"))
		require.Equal(t, "KA01AB1234", r.FormValue("vehicleNumber"))

		file, header, err := r.FormFile("carImage")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "car.jpg", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, []byte("jpeg-bytes"), content)

		_, _ = w.Write([]byte(`{"success":true,"data":null,"message":"ok"}`))
	}))
	defer server.Close()

	tr := transport.NewHTTPTransport(server.URL)
	resp, err := tr.Send(context.Background(), &transport.Request{
		Method: http.MethodPost,
		Path:   "/vehicles",
		Form: &transport.Form{
			Fields: map[string]string{"ownerName": "Ravi", "vehicleNumber": "KA01AB1234"},
			Files: []transport.File{
				{Field: "carImage", Name: "car.jpg", ContentType: "image/jpeg", Content: []byte("jpeg-bytes")},
			},
		},
	})
	require.NoError(t, err)
	require.True(t, resp.OK())
}

func TestSendMultipartEscapesFilename(t *testing.T) {
	const trickyName = `ravi's "car" photo\final.jpg`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("carImage")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, trickyName, header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, []byte("jpeg-bytes"), content)

		_, _ = w.Write([]byte(`{"success":true,"data":null,"message":"ok"}`))
	}))
	defer server.Close()

	tr := transport.NewHTTPTransport(server.URL)
	resp, err := tr.Send(context.Background(), &transport.Request{
		Method: http.MethodPost,
		Path:   "/vehicles",
		Form: &transport.Form{
			Files: []transport.File{
				{Field: "carImage", Name: trickyName, ContentType: "image/jpeg", Content: []byte("jpeg-bytes")},
			},
		},
	})
	require.NoError(t, err)
	require.True(t, resp.OK())
}

func TestSendHeaderOverride(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	req := &transport.Request{Method: http.MethodPost, Path: "/x", Body: map[string]string{}}
	req.Header().Set("Content-Type", "application/vnd.custom+json")

	tr := transport.NewHTTPTransport(server.URL)
	_, err := tr.Send(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "application/vnd.custom+json", gotContentType)
}

func TestSendReturnsNonSuccessStatusAsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"data":null,"message":"Vehicle not found"}`))
	}))
	defer server.Close()

	tr := transport.NewHTTPTransport(server.URL)
	resp, err := tr.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles/by-number/XX00XX0000"})
	require.NoError(t, err)
	require.False(t, resp.OK())
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.True(t, strings.Contains(string(resp.Body), "Vehicle not found"))
}

func TestSendNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	tr := transport.NewHTTPTransport(server.URL)
	_, err := tr.Send(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/vehicles"})
	var netErr *api.NetworkError
	require.ErrorAs(t, err, &netErr)
}
