package report_test

import (
	"bytes"
	"context"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/internal/report"
)

var _ = Describe("Render", func() {
	var (
		engine *report.Engine
		buf    *bytes.Buffer
		ctx    context.Context
	)

	BeforeEach(func() {
		db := openTestDB()
		var err error
		engine, err = report.NewEngine(&report.Config{
			Logger: testLogger(),
			DB:     db,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(db.Create(&registry.Project{
			ProjectID: "PRJ-0001",
			Name:      "Delta Mangrove Restoration",
			Status:    registry.ProjectStatusActive,
			Balances:  registry.ProjectBalances{TotalIssued: 500, Circulating: 500},
		}).Error).To(Succeed())

		buf = &bytes.Buffer{}
		ctx = context.Background()
	})

	Describe("Names", func() {
		It("should list every report in sorted order", func() {
			names := report.Names()
			Expect(names).To(HaveLen(11))
			Expect(names).To(ContainElements("active-projects", "total-issued", "ndvi-monthly-trend"))
			Expect(sort.StringsAreSorted(names)).To(BeTrue())
		})
	})

	Describe("Render", func() {
		It("should write the named report", func() {
			Expect(report.Render(ctx, engine, buf, "active-projects")).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("Delta Mangrove Restoration"))
			Expect(buf.String()).To(ContainSubstring("500 credits"))
		})

		It("should render empty result sets as no data", func() {
			Expect(report.Render(ctx, engine, buf, "plots-by-type")).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("no data"))
		})

		It("should reject an unknown report name", func() {
			err := report.Render(ctx, engine, buf, "bogus")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown report"))
		})
	})

	Describe("RenderAll", func() {
		It("should write every report", func() {
			Expect(report.RenderAll(ctx, engine, buf)).To(Succeed())
			out := buf.String()
			Expect(out).To(ContainSubstring("Active Projects:"))
			Expect(out).To(ContainSubstring("Total credits issued: 500"))
			Expect(out).To(ContainSubstring("Monthly NDVI Trend:"))
		})
	})
})
