// Package api holds one typed client per Echostash resource group. Each method
// maps to exactly one backend endpoint and returns the decoded response or the
// transport error unchanged.
package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/echostash/echostash-automation/internal/transport"
)

// Client bundles every resource client over one shared transport.
type Client struct {
	Transport *transport.Client

	Auth         *AuthClient
	Automation   *AutomationClient
	Projects     *ProjectsClient
	Prompts      *PromptsClient
	Eval         *EvalClient
	Composites   *CompositesClient
	ContextStore *ContextStoreClient
	Analytics    *AnalyticsClient
	Billing      *BillingClient
	Keys         *KeysClient
	Admin        *AdminClient
	PLP          *PLPClient
	Public       *PublicClient
	SDK          *SDKClient
	Health       *HealthClient
}

// New wires every resource client to tc.
func New(tc *transport.Client) *Client {
	return &Client{
		Transport:    tc,
		Auth:         &AuthClient{tc: tc},
		Automation:   &AutomationClient{tc: tc},
		Projects:     &ProjectsClient{tc: tc},
		Prompts:      &PromptsClient{tc: tc},
		Eval:         &EvalClient{tc: tc},
		Composites:   &CompositesClient{tc: tc},
		ContextStore: &ContextStoreClient{tc: tc},
		Analytics:    &AnalyticsClient{tc: tc},
		Billing:      &BillingClient{tc: tc},
		Keys:         &KeysClient{tc: tc},
		Admin:        &AdminClient{tc: tc},
		PLP:          &PLPClient{tc: tc},
		Public:       &PublicClient{tc: tc},
		SDK:          &SDKClient{tc: tc},
		Health:       &HealthClient{tc: tc},
	}
}

// joinPath appends escaped segments to base. Segments are kept verbatim, so an
// empty or dot segment stays visible and the transport rejects the path
// instead of collapsing it onto a parent endpoint.
func joinPath(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/"))
	for _, segment := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(segment))
	}
	return b.String()
}

func pageQuery(params PageParams) url.Values {
	query := url.Values{}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Size > 0 {
		query.Set("size", strconv.Itoa(params.Size))
	}
	return query
}

func setInt(query url.Values, key string, value int) {
	if value > 0 {
		query.Set(key, strconv.Itoa(value))
	}
}

func setString(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}
