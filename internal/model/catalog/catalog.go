package catalog

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ResourceKind 区分资源中心的三类内容。
type ResourceKind string

const (
	KindVideo ResourceKind = "video"
	KindAudio ResourceKind = "audio"
	KindGuide ResourceKind = "guide"
)

// Resource is a self-help item in the resource hub.
type Resource struct {
	ID          string       `json:"id" yaml:"id"`
	Kind        ResourceKind `json:"kind" yaml:"kind"`
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	URL         string       `json:"url" yaml:"url"`
	ImageURL    string       `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
}

// Counselor 可预约的咨询师。
type Counselor struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Specialty string `json:"specialty,omitempty" yaml:"specialty,omitempty"`
}

// Label 返回预约表单中展示的 "姓名 - 方向" 文本。
func (c Counselor) Label() string {
	if c.Specialty == "" {
		return c.Name
	}
	return c.Name + " - " + c.Specialty
}

// ForumPost is a peer-support forum thread.
type ForumPost struct {
	ID        string    `json:"id" yaml:"id"`
	Author    string    `json:"author" yaml:"author"`
	AvatarURL string    `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Likes     int       `json:"likes" yaml:"likes"`
	Comments  int       `json:"comments" yaml:"comments"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// ConsultationNote is a counselor's session summary that can feed the scheduler.
type ConsultationNote struct {
	ID        string `json:"id" yaml:"id"`
	Counselor string `json:"counselor" yaml:"counselor"`
	Date      string `json:"date" yaml:"date"`
	Summary   string `json:"summary" yaml:"summary"`
}

// Catalog 汇总门户的静态内容。
type Catalog struct {
	Resources     []Resource         `json:"resources" yaml:"resources"`
	Counselors    []Counselor        `json:"counselors" yaml:"counselors"`
	TimeSlots     []string           `json:"timeSlots" yaml:"timeSlots"`
	ForumPosts    []ForumPost        `json:"forumPosts" yaml:"forumPosts"`
	Consultations []ConsultationNote `json:"consultations" yaml:"consultations"`
}

//go:embed seed.yaml
var seedYAML []byte

// Seed 解析内置的种子内容。
func Seed() (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(seedYAML, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog seed: %w", err)
	}
	return c, nil
}

// SeedYAML returns the raw embedded seed document.
func SeedYAML() []byte {
	return append([]byte(nil), seedYAML...)
}
