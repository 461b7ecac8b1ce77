package catalog

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ID accepts a JSON string, a number or a populated document with _id/id.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, "{") {
		var doc struct {
			MongoID ID `json:"_id"`
			ID      ID `json:"id"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		*id = doc.MongoID
		if *id == "" {
			*id = doc.ID
		}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*id = ID(str)
		return nil
	}
	*id = ID(s)
	return nil
}

// Product is a catalog entry. Variants and packaging options are passed
// through as the backend sends them.
type Product struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images,omitempty"`
	Category    json.RawMessage `json:"category,omitempty"`
	Variants    json.RawMessage `json:"variants,omitempty"`
	Packaging   json.RawMessage `json:"packaging,omitempty"`
	Stock       *int            `json:"stock,omitempty"`
	Rating      *float64        `json:"rating,omitempty"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	aux := struct {
		*plain
		MongoID ID              `json:"_id"`
		Title   string          `json:"title"`
		Price   json.RawMessage `json:"price"`
		Images  json.RawMessage `json:"images"`
		Image   string          `json:"image"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = aux.MongoID
	}
	if p.Name == "" {
		p.Name = aux.Title
	}
	p.Price = decimalOf(aux.Price)
	p.Images = imagesOf(aux.Images)
	if len(p.Images) == 0 && aux.Image != "" {
		p.Images = []string{aux.Image}
	}
	return nil
}

// Blog is a content article.
type Blog struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Excerpt     string   `json:"excerpt,omitempty"`
	Content     string   `json:"content,omitempty"`
	CoverImage  string   `json:"coverImage,omitempty"`
	Author      string   `json:"author,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	PublishedAt string   `json:"publishedAt,omitempty"`
}

func (b *Blog) UnmarshalJSON(data []byte) error {
	type plain Blog
	aux := struct {
		*plain
		MongoID   ID              `json:"_id"`
		Image     string          `json:"image"`
		Author    json.RawMessage `json:"author"`
		CreatedAt string          `json:"createdAt"`
	}{plain: (*plain)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = aux.MongoID
	}
	if b.CoverImage == "" {
		b.CoverImage = aux.Image
	}
	if b.PublishedAt == "" {
		b.PublishedAt = aux.CreatedAt
	}
	b.Author = nameOf(aux.Author)
	return nil
}

type Category struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Image string `json:"image,omitempty"`
}

func (c *Category) UnmarshalJSON(data []byte) error {
	type plain Category
	aux := struct {
		*plain
		MongoID ID `json:"_id"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = aux.MongoID
	}
	return nil
}

type FAQ struct {
	ID       ID     `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

func (f *FAQ) UnmarshalJSON(data []byte) error {
	type plain FAQ
	aux := struct {
		*plain
		MongoID ID `json:"_id"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = aux.MongoID
	}
	return nil
}

// ReviewInput is a product review.
type ReviewInput struct {
	ProductID string `json:"productId" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Title     string `json:"title,omitempty"`
	Comment   string `json:"comment"`
}

// ContactInput is a contact-form submission.
type ContactInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message" binding:"required"`
}

// LeadInput is the chatbot's lead-capture form.
type LeadInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
}

func decimalOf(raw json.RawMessage) decimal.Decimal {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// imagesOf accepts ["a.png"] or [{"url":"a.png"}].
func imagesOf(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names
	}
	var urls []string
	var objs []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil
	}
	for _, o := range objs {
		if o.URL != "" {
			urls = append(urls, o.URL)
		}
	}
	return urls
}

// nameOf accepts "Jane" or {"name":"Jane"}.
func nameOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(raw, &obj)
	return obj.Name
}
