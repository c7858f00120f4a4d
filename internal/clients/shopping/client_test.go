package shopping

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockHTTPClient struct {
	mock.Mock
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if f, ok := args.Get(0).(func() (*http.Response, error)); ok {
		return f()
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

type stubCredentials struct {
	credentials []models.Credential
	limited     []int
	cursor      int
}

func (s *stubCredentials) Next() (models.Credential, error) {
	credential := s.credentials[s.cursor%len(s.credentials)]
	s.cursor++
	return credential, nil
}

func (s *stubCredentials) MarkLimited(id int) {
	s.limited = append(s.limited, id)
}

func (s *stubCredentials) Size() int {
	return len(s.credentials)
}

func searchResponseMock() (*http.Response, error) {
	file, err := os.ReadFile("testdata/search_response.json")

	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBuffer(file)),
	}, err
}

func rateLimitedResponseMock() func() (*http.Response, error) {
	return func() (*http.Response, error) {
		file, err := os.ReadFile("testdata/rate_limited_response.json")

		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewBuffer(file)),
		}, err
	}
}

func Test_ShoppingClient_Search_ShouldBeSuccessful(t *testing.T) {

	assert := assert.New(t)

	credentials := &stubCredentials{credentials: []models.Credential{
		{ID: 1, ClientID: "client-1", ClientSecret: "secret-1"},
	}}

	mockClient := &mockHTTPClient{}
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.URL.String() == "https://api.example.com/search?display=100&query=vacuum&start=1" &&
			req.Header.Get("X-Api-Client-Id") == "client-1" &&
			req.Header.Get("X-Api-Client-Secret") == "secret-1"
	})).Return(searchResponseMock())

	client := NewClient("https://api.example.com/search", credentials)
	client.SetHTTPClient(mockClient)

	items, total, err := client.Search(context.Background(), SearchParameters{
		Keyword: "vacuum",
		Page:    1,
		PerPage: 100,
	})
	assert.NoError(err)
	assert.Equal(482311, total)

	assert.Len(items, 3)
	assert.Equal("83921775421", items[0].ProductID)
	assert.Equal("무선 청소기 V12 프로 스탠드형", items[0].Title)
	assert.Equal(int64(289000), items[0].Price)
	assert.Equal("클린마트", items[0].Seller)
	assert.Equal([]string{"디지털/가전", "생활가전", "청소기", "스탠드청소기"}, items[0].Categories)
	assert.Equal([]string{"디지털/가전", "생활가전", "청소기"}, items[1].Categories)
	assert.Empty(credentials.limited)
}

func Test_ShoppingClient_Search_RotatesCredentialsUntilExhausted(t *testing.T) {

	assert := assert.New(t)

	credentials := &stubCredentials{credentials: []models.Credential{
		{ID: 1, ClientID: "client-1", ClientSecret: "secret-1"},
		{ID: 2, ClientID: "client-2", ClientSecret: "secret-2"},
	}}

	mockClient := &mockHTTPClient{}
	//each rotation attempt needs a fresh body, so the mock gets a factory
	mockClient.On("Do", mock.Anything).Return(rateLimitedResponseMock(), nil)

	client := NewClient("https://api.example.com/search", credentials)
	client.SetHTTPClient(mockClient)

	_, _, err := client.Search(context.Background(), SearchParameters{
		Keyword: "vacuum",
		Page:    1,
		PerPage: 100,
	})

	assert.ErrorIs(err, clients.ErrCredentialsExhausted)
	assert.Equal([]int{1, 2}, credentials.limited)
}

func Test_ShoppingClient_Search_RejectsTooDeepPagination(t *testing.T) {

	assert := assert.New(t)

	credentials := &stubCredentials{credentials: []models.Credential{{ID: 1}}}
	mockClient := &mockHTTPClient{}

	client := NewClient("https://api.example.com/search", credentials)
	client.SetHTTPClient(mockClient)

	//start would be 1101, past the provider's result window
	_, _, err := client.Search(context.Background(), SearchParameters{
		Keyword: "vacuum",
		Page:    12,
		PerPage: 100,
	})

	assert.True(errors.Is(err, ErrTooDeepPagination))
	mockClient.AssertNotCalled(t, "Do", mock.Anything)
}
