package graphql

import "blogify/infrastructure/cache"

const postFragment = `
fragment PostFragment on posts {
  __typename
  id
  title
  body
  created_at
  updated_at
  author_id
  accounts {
    __typename
    id
    name
    email
    picture_url
  }
}
`

// GetPostsQuery pages through posts, newest first.
const GetPostsQuery = `
query GetPosts($first: Int!, $after: Cursor) {
  postsCollection(first: $first, after: $after, orderBy: [{ created_at: DescNullsLast }]) {
    __typename
    edges {
      __typename
      cursor
      node {
        ...PostFragment
      }
    }
    pageInfo {
      __typename
      hasNextPage
      hasPreviousPage
      startCursor
      endCursor
    }
  }
}
` + postFragment

// GetPostByIDQuery fetches a single post.
const GetPostByIDQuery = `
query GetPostById($id: UUID!) {
  postsCollection(filter: { id: { eq: $id } }) {
    __typename
    edges {
      __typename
      node {
        ...PostFragment
      }
    }
  }
}
` + postFragment

// GetPostIDsQuery lists every post id.
const GetPostIDsQuery = `
query GetPostIds {
  postsCollection {
    edges {
      node {
        id
      }
    }
  }
}
`

// CreatePostMutation inserts one post and returns the stored record.
const CreatePostMutation = `
mutation CreatePost($title: String!, $body: String!, $author_id: UUID!) {
  insertIntopostsCollection(objects: [{ title: $title, body: $body, author_id: $author_id }]) {
    __typename
    records {
      ...PostFragment
    }
  }
}
` + postFragment

// feedOrder matches the orderBy literal in GetPostsQuery.
var feedOrder = []any{map[string]any{"created_at": "DescNullsLast"}}

// GetPostsDocument is the cache identity of the feed query.
var GetPostsDocument = cache.Document{
	Name:      "GetPosts",
	Query:     GetPostsQuery,
	RootField: "postsCollection",
	Args: func(v cache.Variables) cache.Arguments {
		return cache.Arguments{"first": v["first"], "after": v["after"], "orderBy": feedOrder}
	},
}

// GetPostByIDDocument is the cache identity of the single post query.
var GetPostByIDDocument = cache.Document{
	Name:      "GetPostById",
	Query:     GetPostByIDQuery,
	RootField: "postsCollection",
	Args: func(v cache.Variables) cache.Arguments {
		return cache.Arguments{"filter": map[string]any{"id": map[string]any{"eq": v["id"]}}}
	},
}

// CreatePostDocument describes the create mutation.
var CreatePostDocument = cache.Document{
	Name:      "CreatePost",
	Query:     CreatePostMutation,
	RootField: "insertIntopostsCollection",
}

// FeedVariables builds GetPosts variables. An empty after requests the
// first page.
func FeedVariables(first int, after string) cache.Variables {
	vars := cache.Variables{"first": first}
	if after != "" {
		vars["after"] = after
	}
	return vars
}

// CreatePostVariables builds CreatePost variables.
func CreatePostVariables(title, body, authorID string) map[string]any {
	return map[string]any{"title": title, "body": body, "author_id": authorID}
}
