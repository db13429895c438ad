package services_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"product-relay/internal/models"
	"product-relay/internal/services"
)

type recordingStore struct {
	err     error
	entries []*models.CatalogEntry
}

func (s *recordingStore) SaveEntry(ctx context.Context, entry *models.CatalogEntry) error {
	s.entries = append(s.entries, entry)
	return s.err
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

var _ = Describe("ExtractASIN", func() {
	DescribeTable("reads the identifier from Amazon URLs",
		func(url, want string) {
			Expect(services.ExtractASIN(url)).To(Equal(want))
		},
		Entry("dp path", "https://www.amazon.com/dp/B07XJ8C8F5", "B07XJ8C8F5"),
		Entry("slug then dp", "https://www.amazon.com/Swabs-100ct/dp/B000123456/ref=sr_1_1", "B000123456"),
		Entry("query string", "https://www.amazon.com/gp/product/B000654321?th=1", "B000654321"),
		Entry("lowercase is not an ASIN", "https://www.amazon.com/dp/b07xj8c8f5", ""),
		Entry("no identifier", "https://www.amazon.com/s?k=swabs", ""),
		Entry("empty", "", ""),
	)
})

var _ = Describe("ParseCatalogEntry", func() {
	It("parses a product with an array of listings", func() {
		entry, err := services.ParseCatalogEntry(
			raw(`{
				"title": " Alcohol Swabs 100ct ",
				"product_url": "https://www.walgreens.com/store/c/swabs/ID=1",
				"image_urls": ["https://img.example.com/1.jpg"],
				"regular_price": "$6.99",
				"sales_price": "$4.99"
			}`),
			raw(`[
				{"url": "https://www.amazon.com/dp/B000123456", "title": "Swabs", "image_url": "https://img.example.com/a.jpg"},
				{"url": "https://www.amazon.com/s?k=swabs", "title": "search page"},
				{"url": "https://www.amazon.com/dp/B000123456/ref=x", "title": "duplicate"}
			]`),
		)
		Expect(err).NotTo(HaveOccurred())

		Expect(entry.Product.Title).To(Equal("Alcohol Swabs 100ct"))
		Expect(entry.Product.Source).To(Equal("walgreens"))
		Expect(entry.Product.ImageURLs).To(ConsistOf("https://img.example.com/1.jpg"))
		Expect(entry.Product.LastSeenPrice).NotTo(BeNil())
		Expect(*entry.Product.LastSeenPrice).To(Equal("$4.99"))

		Expect(entry.Matches).To(HaveLen(1))
		Expect(entry.Matches[0].ASIN).To(Equal("B000123456"))
		Expect(entry.Matches[0].ImageURL).To(Equal("https://img.example.com/a.jpg"))
	})

	It("accepts a single listing object and an explicit asin", func() {
		entry, err := services.ParseCatalogEntry(
			raw(`{"title": "Soap", "product_url": "https://www.walgreens.com/p/2", "source": "cvs", "regular_price": "$2.00"}`),
			raw(`{"asin": "b000999999", "url": "https://amzn.to/short", "title": "Soap"}`),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Product.Source).To(Equal("cvs"))
		Expect(*entry.Product.LastSeenPrice).To(Equal("$2.00"))
		Expect(entry.Product.ImageURLs).To(BeEmpty())
		Expect(entry.Matches).To(HaveLen(1))
		Expect(entry.Matches[0].ASIN).To(Equal("B000999999"))
	})

	It("allows missing amazon data", func() {
		entry, err := services.ParseCatalogEntry(
			raw(`{"title": "Soap", "product_url": "https://www.walgreens.com/p/2"}`),
			nil,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Matches).To(BeEmpty())
		Expect(entry.Product.LastSeenPrice).To(BeNil())
	})

	DescribeTable("rejects payloads it cannot store",
		func(productData, amazonData string, field string) {
			_, err := services.ParseCatalogEntry(raw(productData), raw(amazonData))
			var validation *services.ValidationError
			Expect(errors.As(err, &validation)).To(BeTrue())
			Expect(validation.Fields).To(HaveKey(field))
		},
		Entry("missing product", `null`, `[]`, "productData"),
		Entry("product is not an object", `[1,2]`, `[]`, "productData"),
		Entry("missing title", `{"product_url":"https://w.example/x"}`, `[]`, "productData.title"),
		Entry("missing url", `{"title":"x"}`, `[]`, "productData.product_url"),
		Entry("amazon data is a string", `{"title":"x","product_url":"https://w.example/x"}`, `"nope"`, "amazonData"),
	)
})

var _ = Describe("CatalogService", func() {
	var (
		store *recordingStore
		svc   *services.CatalogService
		ctx   context.Context
	)

	BeforeEach(func() {
		store = &recordingStore{}
		svc = services.NewCatalogService(store, zap.NewNop())
		ctx = context.Background()
	})

	It("stores parsed entries", func() {
		err := svc.Write(ctx,
			raw(`{"title":"Soap","product_url":"https://www.walgreens.com/p/2"}`),
			raw(`[{"url":"https://www.amazon.com/dp/B000123456","title":"Soap"}]`),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.entries).To(HaveLen(1))
		Expect(store.entries[0].Matches[0].ASIN).To(Equal("B000123456"))
	})

	It("does not reach the store for invalid payloads", func() {
		err := svc.Write(ctx, raw(`{"name":"x"}`), raw(`{"price":1}`))
		Expect(err).To(HaveOccurred())
		Expect(store.entries).To(BeEmpty())
	})

	It("returns store failures", func() {
		store.err = errors.New("connection refused")
		err := svc.Write(ctx, raw(`{"title":"Soap","product_url":"https://www.walgreens.com/p/2"}`), nil)
		Expect(err).To(MatchError("connection refused"))
	})
})

var _ = Describe("NopCatalogWriter", func() {
	It("accepts anything", func() {
		w := services.NopCatalogWriter{}
		Expect(w.Write(context.Background(), raw(`[1]`), raw(`"x"`))).To(Succeed())
		Expect(w.Write(context.Background(), nil, nil)).To(Succeed())
	})
})
