package services

import (
	"context"
	"time"

	"github.com/adswadi/agency-site-backend/database"
	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminEmail    = "admin@agency.local"
	DefaultAdminPassword = "admin123"
)

type samplePost struct {
	title           string
	slug            string
	excerpt         string
	content         string
	tags            []string
	metaTitle       string
	metaDescription string
}

var samplePosts = []samplePost{
	{
		title:   "7 Reasons Your Google Ads Aren't Converting (And How to Fix Them)",
		slug:    "google-ads-not-converting",
		excerpt: "Discover why your Google Ads campaigns are failing and learn proven strategies to turn them into high-ROI growth machines.",
		content: `<p>Google Ads is one of the most powerful ways for a business to attract new customers. Yet many campaigns get clicks and impressions, spend the budget, and never deliver the leads or sales.</p>

<h2>1. Targeting the Wrong Keywords</h2>
<p><strong>The Problem:</strong> Broad keywords like "clothing" or "digital marketing" are expensive and bring traffic with low buyer intent.</p>
<p><strong>The Fix:</strong></p>
<ul>
  <li>Use long-tail keywords with clear purchase intent</li>
  <li>Add negative keywords such as "free", "jobs" and "training"</li>
  <li>Review the search terms report every week</li>
</ul>

<h2>2. Poor Landing Page Experience</h2>
<p>If users land on a slow or irrelevant page they bounce immediately. Keep load time under three seconds, match the page to the ad copy and make the call to action obvious.</p>

<h2>3. Ignoring Geo-Targeting</h2>
<p>Running ads nationwide when you serve a handful of cities burns budget. Target your service areas and mention them in the ad copy.</p>`,
		tags:            []string{"Google Ads", "Digital Marketing", "PPC", "Conversion Optimization"},
		metaTitle:       "7 Reasons Your Google Ads Aren't Converting | Agency Blog",
		metaDescription: "Discover why your Google Ads campaigns are failing and learn proven strategies to turn them into high-ROI growth machines.",
	},
	{
		title:   "High CPC? 5 Proven Hacks to Lower Your Google Ad Costs",
		slug:    "high-cpc-5-hacks-lower-google-ad-costs",
		excerpt: "Struggling with expensive Google Ads? Learn 5 battle-tested strategies to reduce your cost-per-click and maximize your advertising ROI.",
		content: `<p>Click costs keep rising and competition is fierce. There are still proven ways to reduce CPC without sacrificing quality traffic.</p>

<h2>1. Master Long-Tail Keywords</h2>
<p>Long-tail keywords have lower competition and higher intent. Include location, service type and industry.</p>

<h2>2. Optimize Your Quality Score</h2>
<p>Higher Quality Score means lower CPC. Match ad copy to keywords, speed up landing pages and use ad extensions.</p>

<h2>3. Use Dayparting and Geographic Targeting</h2>
<p>Only show ads when and where customers convert. Pause low-performing hours and adjust bids by location.</p>

<h2>4. Use Negative Keywords Aggressively</h2>
<p>Exclude "free", "cheap", "jobs" and "course", and review search terms weekly.</p>

<h2>5. Smart Bidding with Target CPA</h2>
<p>With at least 30 conversions in the last 30 days, let the bidding algorithm learn for two to three weeks before adjusting targets.</p>`,
		tags:            []string{"Google Ads", "CPC Optimization", "Cost Reduction", "PPC"},
		metaTitle:       "High CPC? 5 Proven Hacks to Lower Google Ad Costs | Agency Blog",
		metaDescription: "Struggling with expensive Google Ads? Learn 5 battle-tested strategies to reduce your cost-per-click and maximize your advertising ROI.",
	},
}

// SeedSamplePosts inserts the sample posts when the posts table is empty,
// owned by ownerUsername when that user exists. It returns how many were created.
func SeedSamplePosts(ctx context.Context, db database.Database, ownerUsername string) (int, error) {
	count, err := db.BlogPostRepo().Count(ctx)
	if err != nil {
		return 0, errs.NewDatabaseError("count", "blog posts", err)
	}
	if count > 0 {
		return 0, nil
	}

	var ownerID *uint
	if owner, err := db.UserRepo().FindByUsername(ctx, ownerUsername); err == nil {
		ownerID = &owner.ID
	} else if !errs.IsNotFound(err) {
		return 0, errs.NewDatabaseError("find", "user", err)
	}

	now := time.Now()
	created := 0
	for i, sample := range samplePosts {
		excerpt := sample.excerpt
		metaTitle := sample.metaTitle
		metaDescription := sample.metaDescription
		publishedAt := now.Add(-time.Duration(i) * time.Hour)

		post := &models.BlogPost{
			Title:           sample.title,
			Slug:            sample.slug,
			Excerpt:         &excerpt,
			Content:         sample.content,
			Author:          models.DefaultAuthor,
			Status:          models.StatusPublished,
			PublishedAt:     &publishedAt,
			Tags:            sample.tags,
			MetaTitle:       &metaTitle,
			MetaDescription: &metaDescription,
			ReadTime:        CalculateReadTime(sample.content),
			UserID:          ownerID,
		}
		if err := db.BlogPostRepo().Create(ctx, post); err != nil {
			return created, errs.NewDatabaseError("seed", "blog post", err)
		}
		created++
	}

	log.Info().Int("count", created).Msg("sample blog posts created")
	return created, nil
}
