package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"bluecarbon.dev/registry/internal/api"
	"bluecarbon.dev/registry/internal/registry"
)

var _ = Describe("Server", func() {
	var db *gorm.DB

	BeforeEach(func() {
		db = openTestDB()
	})

	Describe("NewServer", func() {
		It("should return error when config is nil", func() {
			s, err := api.NewServer(nil)
			Expect(err).To(HaveOccurred())
			Expect(s).To(BeNil())
		})

		It("should return error when logger is nil", func() {
			s, err := api.NewServer(&api.ServerConfig{DB: db, HTTPPort: 8000})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger"))
			Expect(s).To(BeNil())
		})

		It("should return error when database is nil", func() {
			s, err := api.NewServer(&api.ServerConfig{Logger: testLogger(), HTTPPort: 8000})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database"))
			Expect(s).To(BeNil())
		})

		It("should return error when the port is not positive", func() {
			s, err := api.NewServer(&api.ServerConfig{Logger: testLogger(), DB: db, HTTPPort: 0})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("port"))
			Expect(s).To(BeNil())
		})

		It("should create a server with valid configuration", func() {
			s, err := api.NewServer(&api.ServerConfig{Logger: testLogger(), DB: db, HTTPPort: 8000})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).NotTo(BeNil())
		})
	})
})

var _ = Describe("HTTP API", func() {
	var (
		db      *gorm.DB
		handler http.Handler
	)

	do := func(method, target string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	BeforeEach(func() {
		db = openTestDB()
		server, err := api.NewServer(&api.ServerConfig{
			Logger:   testLogger(),
			DB:       db,
			HTTPPort: 8000,
		})
		Expect(err).NotTo(HaveOccurred())
		handler = server.Handler()
	})

	Describe("GET /", func() {
		It("should report registry statistics", func() {
			rec := do(http.MethodGet, "/", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body map[string]any
			decode(rec, &body)
			Expect(body["status"]).To(Equal("ready"))
			Expect(body["projects"]).To(BeEquivalentTo(0))
		})
	})

	Describe("GET /health", func() {
		It("should report healthy when the store responds", func() {
			rec := do(http.MethodGet, "/health", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body map[string]any
			decode(rec, &body)
			Expect(body["status"]).To(Equal("healthy"))
		})
	})

	Describe("project lifecycle", func() {
		registerBody := map[string]any{
			"project_id":   "PRJ-0001",
			"name":         "Delta Mangrove Restoration",
			"project_type": "Mangrove",
			"tx_hash":      "0x01",
		}

		It("should register a project and fetch it back", func() {
			rec := do(http.MethodPost, "/projects/register", registerBody)
			Expect(rec.Code).To(Equal(http.StatusCreated))

			rec = do(http.MethodGet, "/projects/PRJ-0001", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var project registry.Project
			decode(rec, &project)
			Expect(project.Name).To(Equal("Delta Mangrove Restoration"))
			Expect(project.Status).To(Equal(registry.ProjectStatusActive))
		})

		It("should reject duplicate registration with 400", func() {
			Expect(do(http.MethodPost, "/projects/register", registerBody).Code).To(Equal(http.StatusCreated))
			Expect(do(http.MethodPost, "/projects/register", registerBody).Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 404 for an unknown project", func() {
			Expect(do(http.MethodGet, "/projects/PRJ-9999", nil).Code).To(Equal(http.StatusNotFound))
		})

		It("should reject an invalid JSON body", func() {
			req := httptest.NewRequest(http.MethodPost, "/projects/register", bytes.NewBufferString("{nope"))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		Context("credits", func() {
			BeforeEach(func() {
				Expect(do(http.MethodPost, "/projects/register", registerBody).Code).To(Equal(http.StatusCreated))
			})

			It("should issue and retire credits", func() {
				rec := do(http.MethodPost, "/credits/issue", map[string]any{
					"project_id": "PRJ-0001",
					"to_address": "0xrecipient",
					"amount":     500,
					"tx_hash":    "0x02",
				})
				Expect(rec.Code).To(Equal(http.StatusOK))

				rec = do(http.MethodPost, "/credits/retire", map[string]any{
					"project_id": "PRJ-0001",
					"amount":     120,
					"tx_hash":    "0x03",
				})
				Expect(rec.Code).To(Equal(http.StatusOK))

				var body struct {
					Project registry.Project `json:"project"`
				}
				decode(rec, &body)
				Expect(body.Project.Balances.Circulating).To(Equal(int64(380)))
			})

			It("should reject over-retirement with 400", func() {
				rec := do(http.MethodPost, "/credits/retire", map[string]any{
					"project_id": "PRJ-0001",
					"amount":     1,
					"tx_hash":    "0x03",
				})
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})

			It("should reject a non-positive amount with 400", func() {
				rec := do(http.MethodPost, "/credits/issue", map[string]any{
					"project_id": "PRJ-0001",
					"amount":     0,
					"tx_hash":    "0x02",
				})
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})

			It("should expose the transaction history, newest first", func() {
				Expect(do(http.MethodPost, "/credits/issue", map[string]any{
					"project_id": "PRJ-0001",
					"amount":     100,
					"tx_hash":    "0x02",
				}).Code).To(Equal(http.StatusOK))

				rec := do(http.MethodGet, "/projects/PRJ-0001/history", nil)
				Expect(rec.Code).To(Equal(http.StatusOK))

				var history []registry.Transaction
				decode(rec, &history)
				Expect(history).To(HaveLen(2))
				Expect(history[0].Type).To(Equal(registry.TxTypeCreditIssuance))
				Expect(history[1].Type).To(Equal(registry.TxTypeProjectRegistration))
			})
		})
	})

	Describe("GET /projects", func() {
		It("should page the project list", func() {
			for i := 1; i <= 3; i++ {
				Expect(do(http.MethodPost, "/projects/register", map[string]any{
					"project_id": fmt.Sprintf("PRJ-%04d", i),
					"name":       fmt.Sprintf("Project %d", i),
				}).Code).To(Equal(http.StatusCreated))
			}

			rec := do(http.MethodGet, "/projects?limit=2&skip=1", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var projects []registry.Project
			decode(rec, &projects)
			Expect(projects).To(HaveLen(2))
			Expect(projects[0].ProjectID).To(Equal("PRJ-0002"))
		})
	})

	Describe("report routes", func() {
		BeforeEach(func() {
			ndvi := 0.71
			lat, long := 1.236204, 90.944851
			Expect(db.Create(&registry.Plot{
				PlotID:      "PLT-0001",
				ProjectType: registry.ProjectTypeMangrove,
				NDVI:        &ndvi,
				GPSLat:      &lat,
				GPSLong:     &long,
			}).Error).To(Succeed())
		})

		It("should serve the plot count", func() {
			rec := do(http.MethodGet, "/reports/plots/count", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body map[string]int64
			decode(rec, &body)
			Expect(body["count"]).To(Equal(int64(1)))
		})

		It("should serve the total issued report with a zero default", func() {
			rec := do(http.MethodGet, "/reports/total-issued", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var body map[string]int64
			decode(rec, &body)
			Expect(body["total_issued"]).To(BeZero())
		})

		It("should serve the proximity report", func() {
			rec := do(http.MethodGet, "/reports/plots/near?lat=1.236204&long=90.944851&radius=1000", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var plots []map[string]any
			decode(rec, &plots)
			Expect(plots).To(HaveLen(1))
			Expect(plots[0]["plot_id"]).To(Equal("PLT-0001"))
		})

		It("should require proximity parameters", func() {
			rec := do(http.MethodGet, "/reports/plots/near?lat=1.0", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should serve NDVI averages by project type", func() {
			rec := do(http.MethodGet, "/reports/ndvi/by-type", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var rows []map[string]any
			decode(rec, &rows)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0]["project_type"]).To(Equal(registry.ProjectTypeMangrove))
		})

		It("should serve empty trend reports as empty arrays, not errors", func() {
			for _, route := range []string{
				"/reports/biomass/trend",
				"/reports/flux/co2",
				"/reports/flux/ch4",
				"/reports/ndvi/monthly",
				"/reports/transactions/recent",
				"/reports/users/by-role",
				"/reports/active-projects",
			} {
				Expect(do(http.MethodGet, route, nil).Code).To(Equal(http.StatusOK), route)
			}
		})
	})

	Describe("GET /metrics", func() {
		It("should expose the Prometheus registry", func() {
			rec := do(http.MethodGet, "/metrics", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})
})
