package runtime

const (
	JobKeywordDiscovery  = "keyword_discovery"
	JobKeywordClustering = "keyword_clustering"
	JobContentPlanBuild  = "content_plan_build"
	JobArticleGenerate   = "article_generate"
	JobArticleFactCheck  = "article_fact_check"
	JobArticleLinkInsert = "article_link_insert"
	JobArticleIndex      = "article_index"
	JobArticlePublish    = "article_publish"
	JobAnalyticsSync     = "analytics_sync"
)

const (
	EntitySite    = "site"
	EntityKeyword = "keyword"
	EntityArticle = "article"
)
