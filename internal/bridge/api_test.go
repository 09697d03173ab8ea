package bridge_test

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/edgecomet/purgebridge/internal/bridge"
	"github.com/edgecomet/purgebridge/internal/purge/engine"
)

var _ = Describe("Bridge API", func() {
	var (
		cdn *fakeCDN
		tb  *testBridge
	)

	BeforeEach(func() {
		cdn = newFakeCDN()
		DeferCleanup(cdn.server.Close)
	})

	AfterEach(func() {
		if tb != nil {
			tb.Stop()
			tb = nil
		}
	})

	Context("authentication", func() {
		BeforeEach(func() {
			tb = startBridge(cdn, defaultOptions())
		})

		It("rejects requests without the internal auth header", func() {
			status, resp := tb.Do(http.MethodGet, "/status", nil, "")
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(resp.Success).To(BeFalse())
		})

		It("rejects a wrong key", func() {
			status, _ := tb.Do(http.MethodPost, "/purge", nil, "nope")
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(cdn.Calls()).To(BeEmpty())
		})

		It("returns 404 for unknown routes", func() {
			status, _ := tb.Do(http.MethodGet, "/nowhere", nil, testAuthKey)
			Expect(status).To(Equal(http.StatusNotFound))
		})
	})

	Context("POST /events inline", func() {
		BeforeEach(func() {
			tb = startBridge(cdn, defaultOptions())
		})

		It("purges the entry and its collection", func() {
			status, resp := tb.Post("/events", bridge.EventRequest{
				Kind:    "entry_saved",
				Subject: bridge.SubjectPayload{URL: "/post-1", ParentURL: "/blog"},
			})
			Expect(status).To(Equal(http.StatusAccepted))

			var decision engine.Decision
			Expect(json.Unmarshal(resp.Data, &decision)).To(Succeed())
			Expect(decision.Action).To(Equal(engine.ActionPurgeURLs))
			Expect(decision.Success).To(BeTrue())

			calls := cdn.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].ZoneID).To(Equal("zone-default"))
			Expect(calls[0].Auth).To(Equal("Bearer test-token"))
			Expect(calls[0].Body["files"]).To(ConsistOf("https://example.com/post-1", "https://example.com/blog"))
		})

		It("falls back to a full purge when the subject has no URL", func() {
			status, resp := tb.Post("/events", bridge.EventRequest{Kind: "asset_deleted"})
			Expect(status).To(Equal(http.StatusAccepted))

			var decision engine.Decision
			Expect(json.Unmarshal(resp.Data, &decision)).To(Succeed())
			Expect(decision.Action).To(Equal(engine.ActionPurgeEverything))

			calls := cdn.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Body["purge_everything"]).To(BeTrue())
		})

		It("rejects unknown kinds and malformed bodies", func() {
			status, _ := tb.Post("/events", map[string]string{"kind": "page_viewed"})
			Expect(status).To(Equal(http.StatusBadRequest))

			status, _ = tb.Post("/events", map[string]string{"kind": "entry_saved", "colour": "red"})
			Expect(status).To(Equal(http.StatusBadRequest))

			Expect(cdn.Calls()).To(BeEmpty())
		})

		It("writes one audit line per CDN request", func() {
			tb.Post("/events", bridge.EventRequest{Kind: "term_saved", Subject: bridge.SubjectPayload{URL: "/tags/go"}})

			data, err := os.ReadFile(tb.AuditPath())
			Expect(err).ToNot(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			Expect(lines).To(HaveLen(1))
			Expect(lines[0]).To(ContainSubstring(`"zone-default"`))
			Expect(lines[0]).To(ContainSubstring(`"purge_urls"`))
			Expect(lines[0]).To(ContainSubstring("success"))
		})
	})

	Context("POST /events with purging disabled", func() {
		BeforeEach(func() {
			opts := defaultOptions()
			opts.Enabled = false
			tb = startBridge(cdn, opts)
		})

		It("accepts the event and makes no CDN call", func() {
			for _, kind := range []string{"entry_saved", "entry_deleted", "term_saved", "term_deleted", "asset_saved", "asset_deleted"} {
				status, resp := tb.Post("/events", bridge.EventRequest{Kind: kind, Subject: bridge.SubjectPayload{URL: "/x"}})
				Expect(status).To(Equal(http.StatusAccepted))

				var decision engine.Decision
				Expect(json.Unmarshal(resp.Data, &decision)).To(Succeed())
				Expect(decision.Reason).To(Equal(engine.ReasonDisabled))
			}

			Consistently(cdn.Calls, 200*time.Millisecond, 20*time.Millisecond).Should(BeEmpty())
		})

		It("answers manual purges with 503", func() {
			status, _ := tb.Post("/purge", bridge.PurgeRequest{})
			Expect(status).To(Equal(http.StatusServiceUnavailable))
			Expect(cdn.Calls()).To(BeEmpty())
		})
	})

	Context("POST /events queued", func() {
		BeforeEach(func() {
			opts := defaultOptions()
			opts.QueuePurge = true
			tb = startBridge(cdn, opts)
		})

		It("returns before purging and the worker runs the task", func() {
			status, resp := tb.Post("/events", bridge.EventRequest{
				Kind:    "entry_deleted",
				Subject: bridge.SubjectPayload{URL: "/post-2", ParentURL: "/blog"},
			})
			Expect(status).To(Equal(http.StatusAccepted))

			var decision engine.Decision
			Expect(json.Unmarshal(resp.Data, &decision)).To(Succeed())
			Expect(decision.Queued).To(BeTrue())

			Eventually(cdn.Calls, 3*time.Second, 20*time.Millisecond).Should(HaveLen(1))
			Expect(cdn.Calls()[0].Body["files"]).To(ConsistOf("https://example.com/post-2", "https://example.com/blog"))
		})

		It("stops purging after a reload disables it", func() {
			Expect(tb.Bridge.Config().Purge.IsEnabled()).To(BeTrue())

			opts := defaultOptions()
			opts.QueuePurge = true
			opts.Enabled = false
			tb.Rewrite(cdn, opts)
			_, err := tb.Bridge.Reload()
			Expect(err).ToNot(HaveOccurred())

			status, resp := tb.Post("/events", bridge.EventRequest{Kind: "entry_saved", Subject: bridge.SubjectPayload{URL: "/p"}})
			Expect(status).To(Equal(http.StatusAccepted))
			var decision engine.Decision
			Expect(json.Unmarshal(resp.Data, &decision)).To(Succeed())
			Expect(decision.Reason).To(Equal(engine.ReasonDisabled))
			Expect(tb.Bridge.Config().Purge.IsEnabled()).To(BeFalse())

			Consistently(cdn.Calls, 200*time.Millisecond, 20*time.Millisecond).Should(BeEmpty())
		})
	})

	Context("multi-zone", func() {
		BeforeEach(func() {
			opts := defaultOptions()
			opts.Zones = map[string]string{
				"a.com":     "Z1",
				"b.com":     "Z2",
				"www.c.com": "Z1",
			}
			tb = startBridge(cdn, opts)
		})

		It("purges every configured zone on POST /purge without a target", func() {
			status, resp := tb.Post("/purge", bridge.PurgeRequest{})
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Success).To(BeTrue())

			zones := []string{}
			for _, c := range cdn.Calls() {
				zones = append(zones, c.ZoneID)
				Expect(c.Body["purge_everything"]).To(BeTrue())
			}
			Expect(zones).To(ConsistOf("Z1", "Z2"))
		})

		It("groups URLs by zone", func() {
			status, _ := tb.Post("/purge", bridge.PurgeRequest{URLs: []string{
				"https://a.com/1",
				"https://www.b.com/2",
				"https://c.com/3",
				"https://a.com/4",
			}})
			Expect(status).To(Equal(http.StatusOK))

			byZone := map[string][]interface{}{}
			for _, c := range cdn.Calls() {
				byZone[c.ZoneID] = c.Body["files"].([]interface{})
			}
			Expect(byZone).To(HaveLen(3))
			Expect(byZone["Z1"]).To(ConsistOf("https://a.com/1", "https://a.com/4"))
			Expect(byZone["Z2"]).To(ConsistOf("https://www.b.com/2"))
			Expect(byZone["zone-default"]).To(ConsistOf("https://c.com/3"))
		})

		It("returns 502 when one zone fails but still tries the others", func() {
			cdn.Fail("Z1")

			status, resp := tb.Post("/purge", bridge.PurgeRequest{})
			Expect(status).To(Equal(http.StatusBadGateway))
			Expect(resp.Success).To(BeFalse())
			Expect(cdn.Calls()).To(HaveLen(2))
		})

		It("purges a zone by domain and 404s unknown domains", func() {
			status, resp := tb.Post("/purge", bridge.PurgeRequest{Domain: "b.com"})
			Expect(status).To(Equal(http.StatusOK))

			var res bridge.PurgeResult
			Expect(json.Unmarshal(resp.Data, &res)).To(Succeed())
			Expect(res.ZoneID).To(Equal("Z2"))

			status, _ = tb.Post("/purge", bridge.PurgeRequest{Domain: "unknown.com"})
			Expect(status).To(Equal(http.StatusNotFound))

			Expect(cdn.Calls()).To(HaveLen(1))
		})

		It("reports zones on GET /status", func() {
			status, resp := tb.Do(http.MethodGet, "/status", nil, testAuthKey)
			Expect(status).To(Equal(http.StatusOK))

			var st bridge.StatusResponse
			Expect(json.Unmarshal(resp.Data, &st)).To(Succeed())
			Expect(st.BridgeID).To(Equal("bridge-test"))
			Expect(st.MultiZone).To(BeTrue())
			Expect(st.Zones).To(Equal([]string{"Z1", "Z2"}))
			Expect(st.Queue.Backend).To(Equal("memory"))
			Expect(st.Queue.Depth).To(BeZero())
		})
	})
})
