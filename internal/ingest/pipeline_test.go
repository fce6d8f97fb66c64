package ingest_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"bluecarbon.dev/registry/internal/ingest"
	"bluecarbon.dev/registry/internal/registry"
)

var _ = Describe("Pipeline", func() {
	var (
		db       *gorm.DB
		pipeline *ingest.Pipeline
		ctx      context.Context
	)

	BeforeEach(func() {
		db = openTestDB()
		var err error
		pipeline, err = ingest.New(&ingest.Config{
			Logger: testLogger(),
			DB:     db,
		})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	Describe("New", func() {
		It("should return error when config is nil", func() {
			p, err := ingest.New(nil)
			Expect(err).To(HaveOccurred())
			Expect(p).To(BeNil())
		})

		It("should return error when logger is nil", func() {
			p, err := ingest.New(&ingest.Config{DB: db})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger"))
			Expect(p).To(BeNil())
		})

		It("should return error when database is nil", func() {
			p, err := ingest.New(&ingest.Config{Logger: testLogger()})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database"))
			Expect(p).To(BeNil())
		})
	})

	Describe("Run", func() {
		const header = "ID,Project_Type,Monitoring_Year,NDVI\n"

		It("should insert new plots", func() {
			path := writeTempCSV(header +
				"PLT-0001,Mangrove,2023,0.71\n" +
				"PLT-0002,Reforestation,2023,0.65\n")

			summary, err := pipeline.Run(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.RowsLoaded).To(Equal(2))
			Expect(summary.Upserted).To(Equal(2))
			Expect(summary.Modified).To(BeZero())
			Expect(summary.Matched).To(BeZero())
			Expect(summary.Failed).To(BeZero())

			var count int64
			Expect(db.Model(&registry.Plot{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(2)))
		})

		It("should be idempotent: re-ingesting identical data writes nothing", func() {
			path := writeTempCSV(header + "PLT-0001,Mangrove,2023,0.71\n")

			_, err := pipeline.Run(ctx, path)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 2; i++ {
				summary, err := pipeline.Run(ctx, path)
				Expect(err).NotTo(HaveOccurred())
				Expect(summary.Upserted).To(BeZero())
				Expect(summary.Modified).To(BeZero())
				Expect(summary.Matched).To(Equal(1))
			}

			var count int64
			Expect(db.Model(&registry.Plot{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		It("should update in place on changed survey data, never duplicate", func() {
			first := writeTempCSV(header + "PLT-0001,Mangrove,2023,0.71\n")
			second := writeTempCSV(header + "PLT-0001,Mangrove,2024,0.75\n")

			_, err := pipeline.Run(ctx, first)
			Expect(err).NotTo(HaveOccurred())

			summary, err := pipeline.Run(ctx, second)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Modified).To(Equal(1))
			Expect(summary.Matched).To(Equal(1))
			Expect(summary.Upserted).To(BeZero())

			var count int64
			Expect(db.Model(&registry.Plot{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))

			var plot registry.Plot
			Expect(db.Where("plot_id = ?", "PLT-0001").First(&plot).Error).To(Succeed())
			Expect(*plot.MonitoringYear).To(Equal(2024))
			Expect(*plot.NDVI).To(Equal(0.75))
		})

		It("should preserve the creation time across updates", func() {
			first := writeTempCSV(header + "PLT-0001,Mangrove,2023,0.71\n")
			second := writeTempCSV(header + "PLT-0001,Mangrove,2024,0.75\n")

			_, err := pipeline.Run(ctx, first)
			Expect(err).NotTo(HaveOccurred())

			var before registry.Plot
			Expect(db.Where("plot_id = ?", "PLT-0001").First(&before).Error).To(Succeed())

			_, err = pipeline.Run(ctx, second)
			Expect(err).NotTo(HaveOccurred())

			var after registry.Plot
			Expect(db.Where("plot_id = ?", "PLT-0001").First(&after).Error).To(Succeed())
			Expect(after.CreatedAt.Equal(before.CreatedAt)).To(BeTrue())
		})

		It("should overwrite a stored value with null when the cell disappears", func() {
			first := writeTempCSV(header + "PLT-0001,Mangrove,2023,0.71\n")
			second := writeTempCSV(header + "PLT-0001,Mangrove,2023,\n")

			_, err := pipeline.Run(ctx, first)
			Expect(err).NotTo(HaveOccurred())

			summary, err := pipeline.Run(ctx, second)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Modified).To(Equal(1))

			var plot registry.Plot
			Expect(db.Where("plot_id = ?", "PLT-0001").First(&plot).Error).To(Succeed())
			Expect(plot.NDVI).To(BeNil())
		})

		It("should apply a duplicate plot ID within one batch as an update", func() {
			path := writeTempCSV(header +
				"PLT-0001,Mangrove,2023,0.71\n" +
				"PLT-0002,Mangrove,2023,0.65\n" +
				"PLT-0001,Mangrove,2024,0.75\n")

			summary, err := pipeline.Run(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.RowsLoaded).To(Equal(3))
			Expect(summary.Upserted).To(Equal(2))
			Expect(summary.Modified).To(Equal(1))
			Expect(summary.Matched).To(Equal(1))
			Expect(summary.Failed).To(BeZero())

			var count int64
			Expect(db.Model(&registry.Plot{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(2)))

			// The later row wins.
			var plot registry.Plot
			Expect(db.Where("plot_id = ?", "PLT-0001").First(&plot).Error).To(Succeed())
			Expect(*plot.MonitoringYear).To(Equal(2024))
			Expect(*plot.NDVI).To(Equal(0.75))
		})

		It("should count rows without an ID as failed and keep going", func() {
			path := writeTempCSV(header +
				",Mangrove,2023,0.71\n" +
				"PLT-0002,Mangrove,2023,0.65\n")

			summary, err := pipeline.Run(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Failed).To(Equal(1))
			Expect(summary.Upserted).To(Equal(1))
			Expect(summary.ParseErrors).To(Equal(1))
		})

		It("should null bad cells but still upsert the row", func() {
			path := writeTempCSV(header + "PLT-0001,Mangrove,n/a,bogus\n")

			summary, err := pipeline.Run(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Upserted).To(Equal(1))
			Expect(summary.Failed).To(BeZero())
			Expect(summary.ParseErrors).To(Equal(2))

			var plot registry.Plot
			Expect(db.Where("plot_id = ?", "PLT-0001").First(&plot).Error).To(Succeed())
			Expect(plot.MonitoringYear).To(BeNil())
			Expect(plot.NDVI).To(BeNil())
		})

		It("should fail the whole run on an empty input", func() {
			path := writeTempCSV(header)
			_, err := pipeline.Run(ctx, path)
			Expect(err).To(MatchError(ingest.ErrEmptyInput))
		})

		It("should abort the batch when the store is gone", func() {
			path := writeTempCSV(header +
				"PLT-0001,Mangrove,2023,0.71\n" +
				"PLT-0002,Mangrove,2023,0.65\n")

			sqlDB, err := db.DB()
			Expect(err).NotTo(HaveOccurred())
			Expect(sqlDB.Close()).To(Succeed())

			summary, err := pipeline.Run(ctx, path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("store unreachable"))
			Expect(summary).To(BeNil())
		})

		It("should abort the batch when the context is cancelled", func() {
			path := writeTempCSV(header + "PLT-0001,Mangrove,2023,0.71\n")

			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := pipeline.Run(cancelled, path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("store unreachable"))
		})
	})
})
