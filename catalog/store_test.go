package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bostalabs/lending-ledger-go/catalog"
	"github.com/bostalabs/lending-ledger-go/ledger"
	"github.com/bostalabs/lending-ledger-go/testutil/helper"
	"github.com/bostalabs/lending-ledger-go/testutil/helper/ledgerwrapper"
)

func setupCatalogTest(t *testing.T) (context.Context, *catalog.Store, *ledgerwrapper.PGXPoolWrapper) {
	ctxWithTimeout, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)

	wrapper := ledgerwrapper.CreateWrapperWithTestConfig(t)

	poolWrapper, ok := wrapper.(*ledgerwrapper.PGXPoolWrapper)
	if !ok {
		wrapper.Close()
		t.Skip("catalog store requires the pgx.pool adapter")
	}

	t.Cleanup(poolWrapper.Close)

	helper.EnsureLendingSchema(t, poolWrapper)
	ledgerwrapper.CleanUpAll(t, poolWrapper)

	store, err := catalog.NewStore(poolWrapper.Pool())
	require.NoError(t, err)

	return ctxWithTimeout, store, poolWrapper
}

func givenBook(t *testing.T, title string, author string, isbn string, totalCopies int64) catalog.Book {
	t.Helper()

	book, err := catalog.BuildBook(title, author, isbn, totalCopies, "", nil)
	require.NoError(t, err, "error in arranging test data")

	return book
}

func Test_CatalogStore_CreateAndGetByID(t *testing.T) {
	// setup
	ctx, store, _ := setupCatalogTest(t)

	// arrange
	book := givenBook(t, "The Go Programming Language", "Donovan & Kernighan", "978-0134190440", 4)

	// act
	createErr := store.Create(ctx, book)
	loaded, getErr := store.GetByID(ctx, book.ID)

	// assert
	assert.NoError(t, createErr)
	assert.NoError(t, getErr)
	assert.Equal(t, book.ID, loaded.ID)
	assert.Equal(t, book.Title, loaded.Title)
	assert.Equal(t, book.Author, loaded.Author)
	assert.Equal(t, book.ISBN, loaded.ISBN)
	assert.Equal(t, int64(4), loaded.TotalCopies)
	assert.JSONEq(t, "{}", string(loaded.ShelfMetadata))
}

func Test_CatalogStore_Create_DuplicateISBN_Fails(t *testing.T) {
	// setup
	ctx, store, _ := setupCatalogTest(t)

	// arrange
	first := givenBook(t, "Learning Go", "Jon Bodner", "978-1492077213", 2)
	second := givenBook(t, "Learning Go, Second Edition", "Jon Bodner", "978-1492077213", 3)

	createErr := store.Create(ctx, first)
	assert.NoError(t, createErr, "error in arranging test data")

	// act
	err := store.Create(ctx, second)

	// assert
	assert.ErrorIs(t, err, ledger.ErrISBNExists)
}

func Test_CatalogStore_GetByISBN(t *testing.T) {
	// setup
	ctx, store, _ := setupCatalogTest(t)

	// arrange
	book := givenBook(t, "100 Go Mistakes", "Teiva Harsanyi", "978-1617299599", 1)
	createErr := store.Create(ctx, book)
	assert.NoError(t, createErr, "error in arranging test data")

	// act
	loaded, err := store.GetByISBN(ctx, book.ISBN)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, book.ID, loaded.ID)
}

func Test_CatalogStore_GetByISBN_Unknown_Fails(t *testing.T) {
	// setup
	ctx, store, _ := setupCatalogTest(t)

	// act
	_, err := store.GetByISBN(ctx, "no-such-isbn")

	// assert
	assert.ErrorIs(t, err, ledger.ErrBookNotFound)
}

func Test_CatalogStore_GetByID_Unknown_Fails(t *testing.T) {
	// setup
	ctx, store, _ := setupCatalogTest(t)

	// act
	_, err := store.GetByID(ctx, uuid.New())

	// assert
	assert.ErrorIs(t, err, ledger.ErrBookNotFound)
}

func Test_CatalogStore_Search_MatchesTitleAuthorAndISBN(t *testing.T) {
	// setup
	ctx, store, _ := setupCatalogTest(t)

	// arrange
	books := []catalog.Book{
		givenBook(t, "Concurrency in Go", "Katherine Cox-Buday", "978-1491941195", 2),
		givenBook(t, "Distributed Services with Go", "Travis Jeffery", "978-1680507607", 2),
		givenBook(t, "The Rust Programming Language", "Klabnik & Nichols", "978-1718503106", 2),
	}
	for _, book := range books {
		createErr := store.Create(ctx, book)
		assert.NoError(t, createErr, "error in arranging test data")
	}

	// act
	pageReq := ledger.BuildPageRequest(1, 10)
	byTitle, titleErr := store.Search(ctx, "concurrency", pageReq)
	byAuthor, authorErr := store.Search(ctx, "jeffery", pageReq)
	byISBN, isbnErr := store.Search(ctx, "1718503106", pageReq)

	// assert
	assert.NoError(t, titleErr)
	require.Len(t, byTitle.Items, 1)
	assert.Equal(t, "Concurrency in Go", byTitle.Items[0].Title)

	assert.NoError(t, authorErr)
	require.Len(t, byAuthor.Items, 1)
	assert.Equal(t, "Distributed Services with Go", byAuthor.Items[0].Title)

	assert.NoError(t, isbnErr)
	require.Len(t, byISBN.Items, 1)
	assert.Equal(t, "The Rust Programming Language", byISBN.Items[0].Title)
}

func Test_CatalogStore_List_OrderedByTitle_WithPagination(t *testing.T) {
	// setup
	ctx, store, _ := setupCatalogTest(t)

	// arrange
	titles := []string{"Charlie", "Alpha", "Echo", "Bravo", "Delta"}
	for i, title := range titles {
		book := givenBook(t, title, "Author", "isbn-"+uuid.NewString(), int64(i+1))
		createErr := store.Create(ctx, book)
		assert.NoError(t, createErr, "error in arranging test data")
	}

	// act
	firstPage, firstErr := store.List(ctx, ledger.BuildPageRequest(1, 2))
	lastPage, lastErr := store.List(ctx, ledger.BuildPageRequest(3, 2))

	// assert
	assert.NoError(t, firstErr)
	assert.Equal(t, int64(5), firstPage.Total)
	assert.Equal(t, 3, firstPage.TotalPages)
	require.Len(t, firstPage.Items, 2)
	assert.Equal(t, "Alpha", firstPage.Items[0].Title)
	assert.Equal(t, "Bravo", firstPage.Items[1].Title)

	assert.NoError(t, lastErr)
	require.Len(t, lastPage.Items, 1)
	assert.Equal(t, "Echo", lastPage.Items[0].Title)
}
